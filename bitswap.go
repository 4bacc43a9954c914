// Package beetle is the embedder-facing facade over the decision engine,
// shaped after other_examples' bitswap.New(...) — a thin binding between the
// transport-agnostic core and a concrete network.MessageNetwork.
package beetle

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RandyMcMillan/beetle/decision"
	"github.com/RandyMcMillan/beetle/internal/metrics"
	"github.com/RandyMcMillan/beetle/internal/xlog"
	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/network"
	"github.com/RandyMcMillan/beetle/protocol"
)

var log = xlog.New("bitswap")

// Bitswap binds a decision.Engine to a concrete network.MessageNetwork and
// runs the poll loop that turns Engine actions into wire activity.
type Bitswap struct {
	engine  *decision.Engine
	net     network.MessageNetwork
	onEvent func(decision.Event)

	stop chan struct{}
	done chan struct{}
}

// New constructs a Bitswap instance wired to net, using cfg (zero value
// meaning decision.DefaultConfig()) and registering its metrics against
// reg. Run must be called to start driving the poll loop.
func New(cfg decision.Config, net network.MessageNetwork, reg prometheus.Registerer) *Bitswap {
	if cfg.MaxLedgers == 0 {
		cfg = decision.DefaultConfig()
	}
	return &Bitswap{
		engine: decision.NewEngine(cfg, metrics.NewEngine(reg)),
		net:    net,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Engine exposes the underlying decision engine for direct command calls
// (WantBlock, FindProviders, SendBlock, ...) and for draining events.
func (b *Bitswap) Engine() *decision.Engine { return b.engine }

// SetEventHandler registers the callback invoked, in FIFO order, for every
// OutboundQueryCompleted / InboundRequest event the engine emits. It must
// be set before Run is called.
func (b *Bitswap) SetEventHandler(fn func(decision.Event)) {
	b.onEvent = fn
}

// Run drives the poll loop until ctx is cancelled or Close is called,
// executing ActionSend/ActionDial against the wired network and handing
// ActionEvent to the handler registered via SetEventHandler, if any.
func (b *Bitswap) Run(ctx context.Context) {
	defer close(b.done)
	ticker := time.NewTicker(decision.MessageDelay / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stop:
			return
		case now := <-ticker.C:
			b.drain(now)
		}
	}
}

// Close stops Run and waits for it to return.
func (b *Bitswap) Close() {
	close(b.stop)
	<-b.done
}

func (b *Bitswap) drain(now time.Time) {
	for {
		action, ok := b.engine.Poll(now)
		if !ok {
			return
		}
		switch action.Kind {
		case decision.ActionEvent:
			if b.onEvent != nil {
				b.onEvent(action.Event)
			}
		case decision.ActionSend:
			b.deliver(action.Peer, action.Message)
		case decision.ActionDial:
			b.dial(action.Peer)
		}
	}
}

func (b *Bitswap) deliver(p network.PeerId, msg *message.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sender, err := b.net.NewMessageSender(ctx, p)
	if err != nil {
		log.Debugw("no sender for peer, dropping coalesced message", "peer", p, "err", err)
		return
	}
	defer sender.Close()
	if err := sender.SendMsg(ctx, msg); err != nil {
		log.Debugw("send failed, treating as connection closed", "peer", p, "err", err)
		b.engine.OnConnectionClosed(p)
		return
	}
	b.engine.OnMessageSent(p, msg)
}

func (b *Bitswap) dial(p network.PeerId) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.net.Dial(ctx, p); err != nil {
		b.engine.OnDialFailure(p, network.DialFailurePermanent)
		return
	}
	b.engine.OnConnectionEstablished(p)
}

// ServeMetrics blocks serving reg's collectors on addr at /metrics, in the
// style of a standalone Prometheus exporter. It returns only on listener
// error.
func ServeMetrics(addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}

// NegotiateAndReport is a convenience an embedder's stream-upgrade handler
// calls once it has picked a mutual protocol, reporting it to the engine
// (spec.md §4.5).
func (b *Bitswap) NegotiateAndReport(p network.PeerId, local, remote []protocol.ID) (protocol.ID, bool) {
	agreed, ok := protocol.Select(local, remote)
	if !ok {
		return 0, false
	}
	b.engine.OnProtocolNegotiated(p, agreed)
	return agreed, true
}
