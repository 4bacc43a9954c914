package decision

import (
	"time"

	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/network"
	"github.com/RandyMcMillan/beetle/protocol"
)

// MessageDelay is the coalescing window: the minimum interval between two
// outbound messages to the same peer (spec.md §4.3, §5).
const MessageDelay = 250 * time.Millisecond

// ConnState is a ledger's connection lifecycle state.
type ConnState int

const (
	Disconnected ConnState = iota
	Dialing
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Dialing:
		return "dialing"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Ledger is one peer's pending-message and connection-state record
// (spec.md §3, §4.3). The zero value is not usable; use newLedger.
type Ledger struct {
	Peer network.PeerId

	pending *message.Message
	conn    ConnState
	agreed  *protocol.ID // nil == Connected(None): agreed version not yet reported

	// nextSend is the earliest time this ledger may emit another message.
	// Initialized in the past so a freshly created ledger may send
	// immediately once connected (spec.md §4.3).
	nextSend time.Time
}

func newLedger(p network.PeerId, now time.Time) *Ledger {
	return &Ledger{
		Peer:     p,
		pending:  message.New(true), // first message: full wantlist
		conn:     Disconnected,
		nextSend: now.Add(-MessageDelay),
	}
}

// ConnState reports the ledger's current connection state.
func (l *Ledger) ConnState() ConnState { return l.conn }

// AgreedProtocol reports the negotiated protocol version, if any.
func (l *Ledger) AgreedProtocol() (protocol.ID, bool) {
	if l.agreed == nil {
		return 0, false
	}
	return *l.agreed, true
}

// PendingEmpty reports whether the pending message has nothing staged.
func (l *Ledger) PendingEmpty() bool {
	return l.pending.Empty()
}

// ledgerAction is what a single ledger's timer demands on this poll tick.
type ledgerAction int

const (
	ledgerActionNone ledgerAction = iota
	ledgerActionSend
	ledgerActionDial
)

// poll evaluates the ledger's timer against now and reports what it
// demands, per the state machine in spec.md §4.3:
//  1. timer not elapsed -> nothing.
//  2. timer elapsed, connected, pending non-empty -> send.
//  3. timer elapsed, disconnected, pending non-empty -> dial.
func (l *Ledger) poll(now time.Time) ledgerAction {
	if now.Before(l.nextSend) {
		return ledgerActionNone
	}
	switch l.conn {
	case Connected:
		if !l.pending.Empty() {
			return ledgerActionSend
		}
	case Disconnected:
		if !l.pending.Empty() {
			return ledgerActionDial
		}
	}
	return ledgerActionNone
}

// takeSend installs a fresh, empty, non-full message and resets the
// coalescing timer, returning the message that was pending.
func (l *Ledger) takeSend(now time.Time) *message.Message {
	sent := l.pending
	l.pending = message.New(false)
	l.nextSend = now.Add(MessageDelay)
	return sent
}

// markDialing transitions Disconnected -> Dialing. The caller (Engine) is
// responsible for the connection_limit check before calling this.
func (l *Ledger) markDialing() {
	l.conn = Dialing
}

// markConnected transitions Dialing or Disconnected -> Connected(None).
func (l *Ledger) markConnected() {
	l.conn = Connected
	l.agreed = nil
}

// setAgreedProtocol records the handler's negotiated version.
func (l *Ledger) setAgreedProtocol(p protocol.ID) {
	l.agreed = &p
}

// markDisconnected transitions to Disconnected from any state. Pending
// messages are preserved — they will trigger a fresh dial.
func (l *Ledger) markDisconnected() {
	l.conn = Disconnected
	l.agreed = nil
}
