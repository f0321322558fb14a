package server

import (
	"context"
	"errors"
	"net"

	"github.com/google/uuid"

	"github.com/cwsl/ilserver/internal/ilerr"
	"github.com/cwsl/ilserver/internal/iq"
	"github.com/cwsl/ilserver/internal/netio"
)

// controllerConn wraps one controller connection's write side. Reads
// happen inline in ServeController; writes are serialized through out
// so the combiner's emitting goroutine never blocks on a slow client
// for long (the channel is bounded and drops on overflow).
type controllerConn struct {
	conn net.Conn
	out  chan []byte
	done chan struct{}
}

const controllerOutBacklog = 64

func newControllerConn(conn net.Conn) *controllerConn {
	return &controllerConn{
		conn: conn,
		out:  make(chan []byte, controllerOutBacklog),
		done: make(chan struct{}),
	}
}

func (c *controllerConn) writeLoop() {
	for {
		select {
		case payload, ok := <-c.out:
			if !ok {
				return
			}
			if _, err := c.conn.Write(payload); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// ServeController implements spec.md §4.7: write the channel-amount
// handshake, then concurrently read phase-shift vectors (ingress) and
// write combiner packets (egress, via the connection's writeLoop)
// until the peer disconnects.
//
// Resolution of an open question spec.md leaves unstated: any number
// of controllers may connect simultaneously. Each receives the same
// combiner output; phase-shift writes from any of them replace the
// shared vector (last write wins), and the vector resets to all zeros
// only once the last controller disconnects, generalizing the
// single-controller wording in spec.md §4.7 without changing its
// behavior in the common single-controller case.
func (s *Context) ServeController(ctx context.Context, conn net.Conn) {
	connID := uuid.New().String()
	defer conn.Close()

	if err := netio.SetNoDelay(conn); err != nil {
		s.Logger.Printf("controller: failed to set TCP_NODELAY id=%s: %v", connID, err)
	}

	if err := netio.WriteChannelAmount(conn, s.Cfg.Server.ChannelAmount); err != nil {
		s.Logger.Printf("controller: failed to write channel_amount id=%s: %v", connID, err)
		return
	}

	cc := newControllerConn(conn)
	s.registerController(cc)
	defer s.unregisterController(cc)

	s.Logger.Printf("controller connected id=%s from=%s", connID, conn.RemoteAddr())

	go cc.writeLoop()

	reader := netio.NewControllerFrameReader(conn, s.Cfg.Server.ChannelAmount, s.Cfg.Server.MaxRecv)
	for {
		vec, err := reader.ReadPhaseVector()
		if err != nil {
			if !errors.Is(err, ilerr.PeerClosed) {
				s.Logger.Printf("controller: protocol error id=%s: %v", connID, err)
			}
			break
		}
		s.Shift.Store(vec)
	}

	close(cc.done)
	s.Logger.Printf("controller disconnected id=%s", connID)
}

func (s *Context) registerController(cc *controllerConn) {
	s.controllersMu.Lock()
	defer s.controllersMu.Unlock()
	s.controllers[cc] = struct{}{}
}

func (s *Context) unregisterController(cc *controllerConn) {
	s.controllersMu.Lock()
	last := false
	if _, ok := s.controllers[cc]; ok {
		delete(s.controllers, cc)
		last = len(s.controllers) == 0
	}
	s.controllersMu.Unlock()

	if last {
		s.Shift.Reset(s.Cfg.Server.ChannelAmount)
	}
}

// broadcastPacket frames one combiner packet and fans it out to every
// connected controller, dropping it for any controller whose write
// queue is currently full rather than blocking the worker goroutine.
func (s *Context) broadcastPacket(samples []iq.Sample, shiftChanged bool) {
	s.controllersMu.Lock()
	targets := make([]*controllerConn, 0, len(s.controllers))
	for cc := range s.controllers {
		targets = append(targets, cc)
	}
	s.controllersMu.Unlock()

	if len(targets) == 0 {
		return
	}

	payload := netio.EncodePacket(samples, shiftChanged)
	for _, cc := range targets {
		select {
		case cc.out <- payload:
		default:
			s.Logger.Printf("controller: output backlog full, dropping packet")
		}
	}
}
