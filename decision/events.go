package decision

import (
	c "github.com/RandyMcMillan/beetle/cid"
	"github.com/RandyMcMillan/beetle/network"
)

// QueryError classifies why an outbound query never completed
// successfully. The engine itself never emits a failed result: dial and
// connection failures are absorbed locally (spec.md §7) and no code path
// produces ErrPeerUnreachable; Timeout is reserved for an outer layer that
// arms a deadline around a want.
type QueryError int

const (
	// ErrTimeout means no response arrived within the caller's own
	// deadline. The engine never arms this itself.
	ErrTimeout QueryError = iota
	ErrPeerUnreachable
)

func (e QueryError) Error() string {
	switch e {
	case ErrTimeout:
		return "timeout"
	case ErrPeerUnreachable:
		return "peer unreachable"
	default:
		return "unknown query error"
	}
}

// EventKind discriminates the embedder-facing event payloads.
type EventKind int

const (
	EventOutboundQueryCompleted EventKind = iota
	EventInboundRequest
)

// Event is one entry in the FIFO the embedder drains. Exactly one of the
// typed fields below is meaningful, selected by Kind.
type Event struct {
	Kind     EventKind
	Outbound OutboundQueryCompleted
	Inbound  InboundRequest
}

// OutboundResultKind discriminates which query the result belongs to.
type OutboundResultKind int

const (
	ResultWant OutboundResultKind = iota
	ResultFindProviders
	ResultSend
	ResultSendHave
	ResultCancel
)

// OutboundQueryCompleted reports the resolution of one outbound query.
// Exactly one of Err / the Ok-only fields is meaningful depending on Ok.
type OutboundQueryCompleted struct {
	Kind     OutboundResultKind
	Ok       bool
	Cid      c.Cid
	Sender   network.PeerId // ResultWant, ResultSend, ResultSendHave
	Provider network.PeerId // ResultFindProviders
	Bytes    []byte         // ResultWant
	Err      error
}

// InboundRequestKind discriminates an inbound wantlist entry's kind.
type InboundRequestKind int

const (
	InboundWant InboundRequestKind = iota
	InboundWantHave
	InboundCancel
)

// InboundRequest reports one entry observed in a peer's inbound wantlist.
type InboundRequest struct {
	Kind     InboundRequestKind
	Sender   network.PeerId
	Cid      c.Cid
	Priority int32 // meaningless for InboundCancel
}

// eventQueue is an unbounded FIFO; the core deliberately never caps it
// (spec.md §9) — a stalled consumer is the embedder's liveness bug, not the
// engine's.
type eventQueue struct {
	items []Event
}

func (q *eventQueue) push(e Event) {
	q.items = append(q.items, e)
}

func (q *eventQueue) pop() (Event, bool) {
	if len(q.items) == 0 {
		return Event{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

func (q *eventQueue) len() int {
	return len(q.items)
}
