package server

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/ilserver/internal/channel"
	"github.com/cwsl/ilserver/internal/ilerr"
	"github.com/cwsl/ilserver/internal/iq"
	"github.com/cwsl/ilserver/internal/metrics"
	"github.com/cwsl/ilserver/internal/netio"
	"github.com/cwsl/ilserver/internal/registry"
	"github.com/cwsl/ilserver/internal/telemetry"
)

// ServeChannel implements spec.md §4.6: register the slot, stream
// framed batches to the worker until the peer disconnects, then
// release the slot.
func (s *Context) ServeChannel(ctx context.Context, conn net.Conn, id int) {
	connID := uuid.New().String()
	defer conn.Close()

	if err := netio.SetNoDelay(conn); err != nil {
		s.Logger.Printf("channel %d: failed to set TCP_NODELAY id=%s: %v", id, connID, err)
	}

	ch, ok := s.Registry.Acquire(id)
	if !ok {
		s.Logger.Printf("channel %d: rejected id=%s from=%s: %s", id, connID, conn.RemoteAddr(), registry.SlotBusyMessage(id))
		if s.Metrics != nil {
			s.Metrics.RecordSlotBusy(id)
		}
		return
	}
	defer s.Registry.Release(id, ch)

	s.Logger.Printf("channel %d connected id=%s from=%s", id, connID, conn.RemoteAddr())

	reader := netio.NewChannelFrameReader(conn, s.Cfg.Server.MaxRecv)
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			if !errors.Is(err, ilerr.PeerClosed) {
				if errors.Is(err, ilerr.BadFrame) {
					s.Logger.Printf("channel %d: bad frame id=%s: %v", id, connID, err)
					if s.Metrics != nil {
						s.Metrics.RecordBadFrame(id)
					}
				} else {
					s.Logger.Printf("channel %d: read error id=%s: %v", id, connID, err)
				}
			}
			break
		}

		if frame.Saturation {
			s.Logger.Printf("channel %d: saturation flag set id=%s", id, connID)
			if s.Metrics != nil {
				s.Metrics.RecordSaturation(id)
			}
		}

		samples, err := iq.Decode(frame.Payload)
		if err != nil {
			s.Logger.Printf("channel %d: decode error id=%s: %v", id, connID, err)
			if s.Metrics != nil {
				s.Metrics.RecordBadFrame(id)
			}
			break
		}

		if err := s.Worker.Submit(ctx, func() { s.processBatch(ch, samples) }); err != nil {
			s.Logger.Printf("channel %d: worker submit failed id=%s: %v", id, connID, err)
			break
		}
		if s.Metrics != nil {
			s.Metrics.RecordQueueDepth(s.Worker.QueueDepth())
		}
	}

	s.Logger.Printf("channel %d disconnected id=%s", id, connID)
}

// processBatch runs on the worker goroutine: dispatch the batch to
// the reference or auxiliary state machine, publish a lock event on
// first lock, then give the combiner a chance to emit packets.
func (s *Context) processBatch(ch *channel.Channel, samples []iq.Sample) {
	threshold := float64(s.Cfg.Server.CarrierThreshold)

	if ch.Kind == channel.Reference {
		channel.ProcessReferenceBatch(ch, samples, threshold)
	} else {
		wasSynced := ch.Synchronised
		ref, _ := s.Registry.Get(0)
		channel.ProcessAuxiliaryBatch(ch, ref, samples, threshold)
		if !wasSynced && ch.Synchronised {
			s.Logger.Printf("channel %d locked: level=%.4f phase_delta=%.4f offset=%d", ch.ID, ch.Level, ch.PhaseDelta, ch.Offset)
			if s.Pub != nil {
				s.Pub.PublishLockEvent(telemetry.LockEvent{
					Timestamp:  time.Now().Unix(),
					Channel:    ch.ID,
					Offset:     ch.Offset,
					Level:      ch.Level,
					PhaseDelta: ch.PhaseDelta,
				})
			}
		}
	}

	if s.Metrics != nil {
		s.Metrics.ObserveChannel(metrics.ChannelSnapshot{
			ID:           ch.ID,
			Synchronised: ch.Synchronised,
			Level:        ch.Level,
			PhaseDelta:   ch.PhaseDelta,
			StartAt:      ch.StartAt,
			BufferLen:    ch.Len(),
		})
	}

	s.tickCombiner()
	s.publishState()
}

// tickCombiner lets the combiner emit any packets now possible given
// the current channel buffers and phase-shift vector, then fans the
// result out to metrics, MQTT and connected controllers.
func (s *Context) tickCombiner() {
	chs := s.denseChannels()
	shift := s.Shift.Load()
	packets := s.Combiner.Tick(chs, shift)
	if len(packets) == 0 {
		return
	}

	shiftChanges := 0
	for _, p := range packets {
		if s.Metrics != nil {
			s.Metrics.RecordPacket(p.ShiftChanged)
		}
		if p.ShiftChanged {
			shiftChanges++
		}
		s.broadcastPacket(p.Samples, p.ShiftChanged)
	}

	if s.Pub != nil {
		s.Pub.PublishPacketSummary(telemetry.PacketSummary{
			Timestamp:      time.Now().Unix(),
			PacketsEmitted: int64(len(packets)),
			ShiftChanges:   int64(shiftChanges),
		})
	}
}
