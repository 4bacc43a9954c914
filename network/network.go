// Package network defines the interfaces the decision engine consumes but
// never implements: the wire codec, the stream multiplexer and the dialer.
// These are external collaborators per spec.md §1 — this package exists so
// the core can be compiled and tested against fakes without depending on
// any concrete transport.
package network

import (
	"context"

	libp2pnetwork "github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/protocol"
)

// PeerId names a remote peer. It is opaque to the engine beyond equality
// and use as a map key.
type PeerId = peer.ID

// MessageSender delivers one Message to a specific peer over an established
// connection. Implementations own framing and encoding.
type MessageSender interface {
	// SendMsg writes msg on the wire. A nil error means the handler
	// accepted the message for delivery, which the engine may treat as a
	// Send/SendHave acknowledgement (spec.md §9).
	SendMsg(ctx context.Context, msg *message.Message) error
	Close() error
}

// Dialer opens outbound connections on demand. The engine never calls Dial
// itself: it hands its driver an ActionDial, the driver calls Dial, and the
// outcome is reported back via Receiver.OnConnectionEstablished or
// Receiver.OnDialFailure.
type Dialer interface {
	Dial(ctx context.Context, p PeerId) error
}

// MessageNetwork is the full external surface the engine needs from the
// transport layer: a way to open a sender to a connected peer, and a way to
// ask for a dial. Framing, multiplexing and the libp2p stream itself are
// strictly outside the engine (spec.md §1 Out-of-scope).
type MessageNetwork interface {
	Dialer
	NewMessageSender(ctx context.Context, p PeerId) (MessageSender, error)
}

// Stream is re-exported only so embedders can type-assert a concrete
// transport's stream against the libp2p interface this engine was designed
// against, without this package importing transport internals.
type Stream = libp2pnetwork.Stream

// Receiver is implemented by the engine and driven by the connection
// handler: every lifecycle and inbound-data notification the handler owes
// the engine (spec.md §6 "Embedder -> engine commands").
type Receiver interface {
	OnConnectionEstablished(p PeerId)
	OnProtocolNegotiated(p PeerId, agreed protocol.ID)
	OnConnectionClosed(p PeerId)
	OnDialFailure(p PeerId, reason DialFailureReason)
	ReceiveMessage(sender PeerId, m *message.Message)
}

// DialFailureReason classifies why a dial failed, per spec.md §4.5.
type DialFailureReason int

const (
	// DialFailurePermanent is any failure not covered below — the peer is
	// removed from known_peers and its ledger dropped.
	DialFailurePermanent DialFailureReason = iota
	// DialFailureConnectionLimit means the transport connection cap was
	// hit; the engine sets a sticky connection_limit flag and keeps the
	// peer's ledger.
	DialFailureConnectionLimit
	// DialFailureConditionFalse is a transient failure ("condition
	// false") that is silently ignored — it will be retried on demand.
	DialFailureConditionFalse
)
