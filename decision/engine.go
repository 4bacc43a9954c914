// Package decision implements the per-peer Ledger and the aggregating
// Engine: the heart of the bitswap protocol engine. It is grounded on
// eth/handler.go's ProtocolManager (peer-set aggregation, broadcast
// fan-out, lifecycle handling) generalized from a single eth wire protocol
// to bitswap's three versions and presence-aware wantlist exchange.
package decision

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	c "github.com/RandyMcMillan/beetle/cid"
	"github.com/RandyMcMillan/beetle/internal/metrics"
	"github.com/RandyMcMillan/beetle/internal/xlog"
	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/network"
	"github.com/RandyMcMillan/beetle/protocol"
	"github.com/RandyMcMillan/beetle/wantlist"
)

var log = xlog.New("decision")

// Engine aggregates per-peer Ledgers, the global Wantlist and the outbound
// event FIFO, and drives connection lifecycle and protocol-version
// bookkeeping. It is the public API surface embedders drive (spec.md §4.4).
//
// Engine is not safe for concurrent use: it is driven by a single poll loop
// (spec.md §5), the same single-driver discipline eth/handler.go's
// ProtocolManager relies on for its own peer set.
type Engine struct {
	cfg Config

	knownPeers *lru.Cache[network.PeerId, *protocol.ID]
	ledgers    *lru.Cache[network.PeerId, *Ledger]

	wantlist *wantlist.Wantlist
	events   eventQueue

	// connLimited is set when a dial failed due to the transport
	// connection cap, and cleared on any disconnect (spec.md §4.5).
	connLimited bool

	metrics *metrics.Engine
	now     func() time.Time
}

// NewEngine constructs an Engine with the given configuration. metricsEngine
// may be created via internal/metrics.NewEngine against any
// prometheus.Registerer, including prometheus.NewRegistry() for hermetic
// tests.
func NewEngine(cfg Config, metricsEngine *metrics.Engine) *Engine {
	e := &Engine{
		cfg:      cfg,
		wantlist: wantlist.New(),
		metrics:  metricsEngine,
		now:      time.Now,
	}
	e.knownPeers, _ = lru.New[network.PeerId, *protocol.ID](cfg.MaxCachedPeers)
	e.ledgers, _ = lru.NewWithEvict[network.PeerId, *Ledger](cfg.MaxLedgers, e.onLedgerEvicted)
	return e
}

func (e *Engine) onLedgerEvicted(p network.PeerId, _ *Ledger) {
	// The evicted ledger's pending message is simply dropped: any unsent
	// wants will be re-sent on the peer's next interaction, per spec.md §3.
	e.metrics.LedgersEvicted.Inc()
	log.Debugw("ledger evicted", "peer", p)
}

func (e *Engine) pushEvent(ev Event) {
	e.events.push(ev)
	e.metrics.EventsEnqueued.Inc()
}

// getOrCreateLedger returns the peer's ledger, creating one lazily if this
// is the first operation referencing that peer (spec.md §3 Lifecycle).
func (e *Engine) getOrCreateLedger(p network.PeerId) *Ledger {
	if l, ok := e.ledgers.Get(p); ok {
		return l
	}
	l := newLedger(p, e.now())
	e.ledgers.Add(p, l)
	return l
}

// knownProtocol reports the last observed agreed protocol for p, or (0,
// false) if unknown.
func (e *Engine) knownProtocol(p network.PeerId) (protocol.ID, bool) {
	v, ok := e.knownPeers.Peek(p)
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// canReceiveWantHave reports whether p is allowed to be sent Want-Have:
// its recorded protocol is V120, or no protocol is recorded for it (never
// observed, or known without an agreed version) (spec.md §4.4 find_providers: "every known peer whose recorded protocol
// is V120 or unknown").
func (e *Engine) canReceiveWantHave(p network.PeerId) bool {
	v, ok := e.knownPeers.Peek(p)
	if !ok || v == nil {
		return true
	}
	return *v == protocol.V120
}

// AddPeer records that p speaks proto (nil if not yet known). It updates
// the known_peers LRU only; it never dials.
func (e *Engine) AddPeer(p network.PeerId, proto *protocol.ID) {
	e.knownPeers.Add(p, proto)
}

// WantBlock records a global Want-Block for cid and, for each candidate
// provider, stages a Want-Block in that peer's ledger.
func (e *Engine) WantBlock(cid c.Cid, priority int32, providers []network.PeerId) {
	e.wantlist.WantBlock(cid, priority)
	for _, p := range providers {
		l := e.getOrCreateLedger(p)
		l.pending.WantBlock(cid, priority)
	}
}

// FindProviders records a global Want-Have for cid and broadcasts it to
// every known peer able to honor Want-Have, capped at MaxProviders peers.
func (e *Engine) FindProviders(cid c.Cid, priority int32) {
	e.wantlist.WantHave(cid, priority)
	sent := 0
	for _, p := range e.knownPeers.Keys() {
		if sent >= MaxProviders {
			log.Warnw("find_providers fan-out capped", "cid", cid, "cap", MaxProviders)
			break
		}
		if !e.canReceiveWantHave(p) {
			continue
		}
		l := e.getOrCreateLedger(p)
		l.pending.WantHave(cid, priority)
		sent++
	}
}

// SendBlock queues a block payload in peer's ledger.
func (e *Engine) SendBlock(peer network.PeerId, cid c.Cid, data []byte) {
	l := e.getOrCreateLedger(peer)
	l.pending.AddBlock(cid, data)
}

// SendHaveBlock queues a Have presence in peer's ledger.
func (e *Engine) SendHaveBlock(peer network.PeerId, cid c.Cid) {
	l := e.getOrCreateLedger(peer)
	l.pending.AddBlockPresence(cid, message.Have)
}

// CancelBlock removes cid from the global wantlist and records a cancel in
// every existing ledger.
func (e *Engine) CancelBlock(cid c.Cid) {
	e.wantlist.Remove(cid)
	for _, p := range e.ledgers.Keys() {
		if l, ok := e.ledgers.Peek(p); ok {
			l.pending.CancelBlock(cid)
		}
	}
}

// CancelWantBlock removes a Want-Have for cid from the global wantlist and
// from every ledger, without emitting a cancel on the wire.
func (e *Engine) CancelWantBlock(cid c.Cid) {
	e.wantlist.RemoveHave(cid)
	for _, p := range e.ledgers.Keys() {
		if l, ok := e.ledgers.Peek(p); ok {
			l.pending.RemoveWantHave(cid)
		}
	}
}

// ReceiveMessage routes one inbound Message from sender, mutating ledgers
// and the global wantlist and appending events in the order mandated by
// spec.md §4.4/§5: payloads, then presences, then wantlist entries, source
// order preserved within each.
func (e *Engine) ReceiveMessage(sender network.PeerId, m *message.Message) {
	senderLedger := e.getOrCreateLedger(sender)

	for _, b := range m.BlockPayloads() {
		e.wantlist.Remove(b.Cid)
		senderLedger.pending.RemoveWantBlock(b.Cid)
		for _, p := range e.ledgers.Keys() {
			if p == sender {
				continue
			}
			if l, ok := e.ledgers.Peek(p); ok {
				l.pending.CancelBlock(b.Cid)
			}
		}
		e.pushEvent(Event{
			Kind: EventOutboundQueryCompleted,
			Outbound: OutboundQueryCompleted{
				Kind: ResultWant, Ok: true, Sender: sender, Cid: b.Cid, Bytes: b.Data,
			},
		})
	}

	for _, pr := range m.Presences() {
		if pr.Kind != message.Have {
			continue
		}
		e.wantlist.RemoveHave(pr.Cid)
		for _, p := range e.ledgers.Keys() {
			if l, ok := e.ledgers.Peek(p); ok {
				l.pending.RemoveWantHave(pr.Cid)
			}
		}
		e.pushEvent(Event{
			Kind: EventOutboundQueryCompleted,
			Outbound: OutboundQueryCompleted{
				Kind: ResultFindProviders, Ok: true, Cid: pr.Cid, Provider: sender,
			},
		})
	}

	for _, want := range m.Blocks() {
		e.pushEvent(Event{
			Kind: EventInboundRequest,
			Inbound: InboundRequest{
				Kind: InboundWant, Sender: sender, Cid: want.Cid, Priority: want.Priority,
			},
		})
	}
	for _, want := range m.WantHaveBlocks() {
		e.pushEvent(Event{
			Kind: EventInboundRequest,
			Inbound: InboundRequest{
				Kind: InboundWantHave, Sender: sender, Cid: want.Cid, Priority: want.Priority,
			},
		})
	}
	for _, cid := range m.Cancels() {
		e.pushEvent(Event{
			Kind: EventInboundRequest,
			Inbound: InboundRequest{
				Kind: InboundCancel, Sender: sender, Cid: cid,
			},
		})
	}
}

// OnMessageSent reports that msg was handed off to peer successfully,
// emitting the optional ResultSend/ResultSendHave events spec.md §9 leaves
// for an embedder that wants delivery confirmation rather than just the
// Want/FindProviders resolution events ReceiveMessage produces.
func (e *Engine) OnMessageSent(peer network.PeerId, msg *message.Message) {
	for _, b := range msg.BlockPayloads() {
		e.pushEvent(Event{
			Kind: EventOutboundQueryCompleted,
			Outbound: OutboundQueryCompleted{
				Kind: ResultSend, Ok: true, Sender: peer, Cid: b.Cid,
			},
		})
	}
	for _, pr := range msg.Presences() {
		if pr.Kind != message.Have {
			continue
		}
		e.pushEvent(Event{
			Kind: EventOutboundQueryCompleted,
			Outbound: OutboundQueryCompleted{
				Kind: ResultSendHave, Ok: true, Sender: peer, Cid: pr.Cid,
			},
		})
	}
}

// OnConnectionEstablished transitions sender's ledger to Connected(None).
// If a peer-initiated connection arrives for a peer with no ledger yet, one
// is created directly in the Connected state (the dial half of the FSM is
// simply skipped, since no dial was needed). A peer reaching this method for
// the first time is also recorded in known_peers with no protocol yet
// (distinct from never having been observed at all) so find_providers fan-out
// can reach it before any protocol negotiates.
//
// As a generalization of the "first message is full" rule (spec.md §4.2),
// a peer whose protocol is V120 or unknown is immediately re-sent the full
// outstanding Want-Have set, resolved against original_source/iroh-bitswap's
// reconnect behavior (see SPEC_FULL.md §12).
func (e *Engine) OnConnectionEstablished(p network.PeerId) {
	if _, ok := e.knownPeers.Peek(p); !ok {
		e.knownPeers.Add(p, nil)
	}
	l := e.getOrCreateLedger(p)
	switch l.conn {
	case Dialing, Disconnected:
		l.markConnected()
	}
	if e.canReceiveWantHave(p) {
		for _, want := range e.wantlist.WantHaveBlocks() {
			l.pending.WantHave(want.Cid, want.Priority)
		}
	}
}

// OnProtocolNegotiated records the protocol version the handler agreed
// with p, in both the ledger and the known_peers LRU.
func (e *Engine) OnProtocolNegotiated(p network.PeerId, agreed protocol.ID) {
	if l, ok := e.ledgers.Peek(p); ok {
		l.setAgreedProtocol(agreed)
	}
	e.knownPeers.Add(p, &agreed)
}

// OnConnectionClosed transitions p's ledger to Disconnected and clears the
// sticky connection_limit flag, enabling retry (spec.md §4.5).
func (e *Engine) OnConnectionClosed(p network.PeerId) {
	if l, ok := e.ledgers.Peek(p); ok {
		l.markDisconnected()
	}
	e.connLimited = false
}

// OnDialFailure handles a failed dial per the classification in spec.md
// §4.5.
func (e *Engine) OnDialFailure(p network.PeerId, reason network.DialFailureReason) {
	switch reason {
	case network.DialFailureConnectionLimit:
		e.connLimited = true
		if l, ok := e.ledgers.Peek(p); ok {
			l.markDisconnected()
		}
	case network.DialFailureConditionFalse:
		if l, ok := e.ledgers.Peek(p); ok {
			l.markDisconnected()
		}
	default: // permanent
		e.knownPeers.Remove(p)
		e.ledgers.Remove(p)
	}
}

// Poll returns the single next ready action, in the deterministic order
// spec.md §5 mandates: a pending FIFO event first, else the first ledger
// (in LRU order) whose timer has elapsed and whose state demands action.
// It returns (Action{}, false) when nothing is ready this tick.
func (e *Engine) Poll(now time.Time) (Action, bool) {
	if ev, ok := e.events.pop(); ok {
		e.metrics.EventsDrained.Inc()
		return Action{Kind: ActionEvent, Event: ev}, true
	}

	for _, p := range e.ledgers.Keys() {
		l, ok := e.ledgers.Peek(p)
		if !ok {
			continue
		}
		switch l.poll(now) {
		case ledgerActionSend:
			l, _ = e.ledgers.Get(p) // genuine use: promote recency
			msg := l.takeSend(now)
			e.metrics.MessagesSent.Inc()
			return Action{Kind: ActionSend, Peer: p, Message: msg}, true
		case ledgerActionDial:
			if e.connLimited {
				continue
			}
			l, _ = e.ledgers.Get(p)
			l.markDialing()
			return Action{Kind: ActionDial, Peer: p}, true
		}
	}
	return Action{}, false
}

// Ledger returns the current ledger for p, if one exists, for introspection
// and tests. It does not create one.
func (e *Engine) Ledger(p network.PeerId) (*Ledger, bool) {
	return e.ledgers.Peek(p)
}

// KnownPeers reports the number of entries in the known_peers LRU.
func (e *Engine) KnownPeers() int { return e.knownPeers.Len() }

// Ledgers reports the number of active ledgers.
func (e *Engine) Ledgers() int { return e.ledgers.Len() }

// ConnectionLimited reports the sticky connection_limit flag's state.
func (e *Engine) ConnectionLimited() bool { return e.connLimited }
