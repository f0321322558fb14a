// Package server wires the synchronization core (registry, worker,
// combiner, phase-shift cell) and the optional telemetry surfaces
// into one explicit Context, threaded through every handler instead
// of relying on package-level globals.
package server

import (
	"context"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwsl/ilserver/internal/channel"
	"github.com/cwsl/ilserver/internal/combiner"
	"github.com/cwsl/ilserver/internal/config"
	"github.com/cwsl/ilserver/internal/mcpstatus"
	"github.com/cwsl/ilserver/internal/metrics"
	"github.com/cwsl/ilserver/internal/phaseshift"
	"github.com/cwsl/ilserver/internal/registry"
	"github.com/cwsl/ilserver/internal/statusws"
	"github.com/cwsl/ilserver/internal/telemetry"
	"github.com/cwsl/ilserver/internal/worker"
)

// Context holds every piece of shared state the ingress/egress
// handlers need. One Context is constructed per process run.
type Context struct {
	Cfg      *config.Config
	Registry *registry.Registry
	Worker   *worker.Worker
	Combiner *combiner.Combiner
	Shift    *phaseshift.Cell
	Metrics  *metrics.Metrics     // nil if disabled
	Pub      *telemetry.Publisher // nil if disabled
	Logger   *log.Logger

	listenersMu sync.Mutex
	listeners   []net.Listener

	controllersMu sync.Mutex
	controllers   map[*controllerConn]struct{}

	// state is the most recent per-channel snapshot, published by the
	// worker goroutine after each processed batch. statusSnapshot and
	// mcpSnapshot read it instead of touching *channel.Channel fields
	// directly, since those are only safe to read from the worker
	// goroutine itself.
	state atomic.Pointer[[]channelState]
}

// channelState is an immutable copy of the fields of a *channel.Channel
// that the status surfaces report, taken on the worker goroutine.
type channelState struct {
	ID           int
	Kind         channel.Kind
	Synchronised bool
	StartFound   bool
	Level        float64
	PhaseDelta   float64
	Offset       int
	BufferLen    int
}

// New constructs a Context from a loaded configuration. Optional
// telemetry fields (Metrics, Pub) are left nil; callers wire them in
// before accepting connections if the corresponding config section is
// enabled.
func New(cfg *config.Config, logger *log.Logger) *Context {
	return &Context{
		Cfg:         cfg,
		Registry:    registry.New(),
		Worker:      worker.New(cfg.Server.WorkerQueueSize),
		Combiner:    combiner.New(cfg.Server.ChannelAmount, cfg.Server.PacketSize),
		Shift:       phaseshift.NewCell(cfg.Server.ChannelAmount),
		Logger:      logger,
		controllers: make(map[*controllerConn]struct{}),
	}
}

// trackListener registers l so Shutdown can close it.
func (s *Context) trackListener(l net.Listener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

// CloseListeners closes every tracked listener, step (b) of the
// shutdown sequence in SPEC_FULL.md §5.
func (s *Context) CloseListeners() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for _, l := range s.listeners {
		_ = l.Close()
	}
}

// Shutdown runs the full shutdown sequence: close listeners, cancel
// the caller's context (done by the caller before invoking Shutdown),
// join the worker, then stop any telemetry servers the caller passed
// in via extraStoppers.
func (s *Context) Shutdown(ctx context.Context, extraStoppers ...func(context.Context)) {
	s.CloseListeners()
	s.Worker.Close()
	for _, stop := range extraStoppers {
		stop(ctx)
	}
}

// ListenChannels starts one TCP listener per channel id on
// Cfg.Server.BaseChannel+id and serves connections until ctx is
// cancelled.
func (s *Context) ListenChannels(ctx context.Context) error {
	for id := 0; id < s.Cfg.Server.ChannelAmount; id++ {
		addr := channelAddr(s.Cfg.Server.BaseChannel, id)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		s.trackListener(l)
		s.Logger.Printf("channel %d listening on %s", id, addr)
		go s.acceptChannelLoop(ctx, l, id)
	}
	return nil
}

// ListenController starts the controller listener on
// Cfg.Server.ReceiverPort and serves connections until ctx is
// cancelled.
func (s *Context) ListenController(ctx context.Context) error {
	addr := receiverAddr(s.Cfg.Server.ReceiverPort)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.trackListener(l)
	s.Logger.Printf("controller listening on %s", addr)
	go s.acceptControllerLoop(ctx, l)
	return nil
}

func (s *Context) acceptChannelLoop(ctx context.Context, l net.Listener, id int) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.Logger.Printf("channel %d: accept error: %v", id, err)
				return
			}
		}
		go s.ServeChannel(ctx, conn, id)
	}
}

func (s *Context) acceptControllerLoop(ctx context.Context, l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.Logger.Printf("controller: accept error: %v", err)
				return
			}
		}
		go s.ServeController(ctx, conn)
	}
}

func channelAddr(base, id int) string {
	return hostPort("0.0.0.0", base+id)
}

func receiverAddr(port int) string {
	return hostPort("0.0.0.0", port)
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// denseChannels returns the registry snapshot as a slice indexed by
// channel id, for the combiner's positional channel argument. Only the
// worker goroutine may call this: the returned *channel.Channel values
// are live and their fields are not safe to read concurrently with the
// worker's own mutations.
func (s *Context) denseChannels() []*channel.Channel {
	snap := s.Registry.Snapshot()
	out := make([]*channel.Channel, s.Cfg.Server.ChannelAmount)
	for id, ch := range snap {
		if id >= 0 && id < len(out) {
			out[id] = ch
		}
	}
	return out
}

// publishState snapshots the current channel fields into an immutable
// slice and publishes it for statusSnapshot/mcpSnapshot to read. Must
// only be called from the worker goroutine, after a batch has been
// processed, so the read of each *channel.Channel here happens-before
// any concurrent reader via the atomic store/load.
func (s *Context) publishState() {
	chs := s.denseChannels()
	states := make([]channelState, 0, len(chs))
	for _, ch := range chs {
		if ch == nil {
			continue
		}
		states = append(states, channelState{
			ID:           ch.ID,
			Kind:         ch.Kind,
			Synchronised: ch.Synchronised,
			StartFound:   ch.StartFound,
			Level:        ch.Level,
			PhaseDelta:   ch.PhaseDelta,
			Offset:       ch.Offset,
			BufferLen:    ch.Len(),
		})
	}
	s.state.Store(&states)
}

// loadState returns the most recently published snapshot, or an empty
// slice if the worker has not processed a batch yet.
func (s *Context) loadState() []channelState {
	p := s.state.Load()
	if p == nil {
		return nil
	}
	return *p
}

// statusSnapshot builds the diagnostic snapshot shared by the status
// websocket and the MCP introspection tool, from the last state the
// worker published.
func (s *Context) statusSnapshot() []statusws.ChannelStatus {
	states := s.loadState()
	out := make([]statusws.ChannelStatus, 0, len(states))
	for _, st := range states {
		out = append(out, statusws.ChannelStatus{
			ID:           st.ID,
			Synchronised: st.Synchronised,
			StartFound:   st.StartFound,
			Level:        st.Level,
			PhaseDelta:   st.PhaseDelta,
			BufferLen:    st.BufferLen,
		})
	}
	return out
}

func (s *Context) mcpSnapshot() []mcpstatus.ChannelStatus {
	states := s.loadState()
	out := make([]mcpstatus.ChannelStatus, 0, len(states))
	for _, st := range states {
		kind := "auxiliary"
		if st.Kind == channel.Reference {
			kind = "reference"
		}
		out = append(out, mcpstatus.ChannelStatus{
			ID:           st.ID,
			Kind:         kind,
			Synchronised: st.Synchronised,
			StartFound:   st.StartFound,
			Level:        st.Level,
			PhaseDelta:   st.PhaseDelta,
			Offset:       st.Offset,
			BufferLen:    st.BufferLen,
		})
	}
	return out
}

// StatusBroadcaster builds a statusws.Broadcaster bound to this
// Context's snapshot, ticking at the configured broadcast interval.
func (s *Context) StatusBroadcaster() *statusws.Broadcaster {
	interval := time.Duration(s.Cfg.StatusWS.BroadcastMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}
	return statusws.NewBroadcaster(func() statusws.Snapshot {
		return statusws.Snapshot{Channels: s.statusSnapshot()}
	}, interval)
}

// MCPServer builds an mcpstatus.Server bound to this Context's
// snapshot.
func (s *Context) MCPServer() *mcpstatus.Server {
	return mcpstatus.New(func() []mcpstatus.ChannelStatus {
		return s.mcpSnapshot()
	})
}
