package decision

import (
	"github.com/RandyMcMillan/beetle/message"
	"github.com/RandyMcMillan/beetle/network"
)

// ActionKind discriminates what Engine.Poll is asking the driver to do.
type ActionKind int

const (
	// ActionNone means Poll had nothing ready this tick.
	ActionNone ActionKind = iota
	// ActionEvent means Event is populated; hand it to the embedder.
	ActionEvent
	// ActionSend means Message is ready for Peer; open a MessageSender
	// and call SendMsg, then report success via outbound events if the
	// embedder cares (spec.md §9 on Send/SendHave).
	ActionSend
	// ActionDial means the driver should call network.Dialer.Dial(Peer)
	// and report the outcome back via Engine.OnConnectionEstablished /
	// Engine.OnDialFailure.
	ActionDial
)

// Action is the single next step Engine.Poll hands back to its driver. The
// engine itself never performs IO (spec.md §5): the driver executes the
// action and reports results back through the Engine's notification
// methods.
type Action struct {
	Kind    ActionKind
	Event   Event
	Peer    network.PeerId
	Message *message.Message
}
