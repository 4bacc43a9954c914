// Package message represents one pending wire message to a peer: a
// wantlist delta, cancels, block payloads and presences. The wire codec
// (framing, varint length-prefixing, protobuf encoding) lives outside this
// package and outside the engine entirely — see spec.md §6.
package message

import (
	c "github.com/RandyMcMillan/beetle/cid"
	"github.com/RandyMcMillan/beetle/wantlist"
)

// PresenceKind is whether a peer reports having or lacking a block.
type PresenceKind int

const (
	// Have means the peer reports it holds the block.
	Have PresenceKind = iota
	// DontHave means the peer reports it does not hold the block.
	DontHave
)

// BlockPresence is a compact (CID, Have|DontHave) announcement, valid only
// on protocol.V120.
type BlockPresence struct {
	Cid  c.Cid
	Kind PresenceKind
}

// Block is one payload entry: the raw bytes for a CID the remote asked for.
// Bytes are treated as an opaque, cheap-to-clone, immutable buffer — the
// engine never copies its content, only moves ownership of the slice.
type Block struct {
	Cid  c.Cid
	Data []byte
}

// Message is the staged delta for one peer. It is empty iff payloads,
// presences and the wantlist delta are all empty (the full flag alone does
// not make an otherwise-empty message non-empty).
type Message struct {
	wants     *wantlist.Wantlist
	cancels   []c.Cid
	blocks    []Block
	presences []BlockPresence
	Full      bool
}

// New returns a fresh, empty Message. full is true only for a ledger's very
// first outbound message (spec.md §4.2).
func New(full bool) *Message {
	return &Message{wants: wantlist.New(), Full: full}
}

// WantBlock stages a Want-Block delta entry.
func (m *Message) WantBlock(cid c.Cid, priority int32) {
	m.wants.WantBlock(cid, priority)
}

// WantHave stages a Want-Have delta entry (dropped by the codec on
// protocols older than v1.2.0 — see spec.md §4.2).
func (m *Message) WantHave(cid c.Cid, priority int32) {
	m.wants.WantHave(cid, priority)
}

// CancelBlock removes any staged want for cid and records a wire cancel.
func (m *Message) CancelBlock(cid c.Cid) {
	m.wants.Remove(cid)
	m.cancels = append(m.cancels, cid)
}

// RemoveWantBlock removes a staged Want-Block without emitting a cancel —
// used when the peer has already answered with the block rather than the
// want being withdrawn by the caller.
func (m *Message) RemoveWantBlock(cid c.Cid) {
	m.wants.RemoveBlock(cid)
}

// RemoveWantHave removes a staged Want-Have without emitting a cancel —
// used when the want was satisfied by a presence rather than withdrawn.
func (m *Message) RemoveWantHave(cid c.Cid) {
	m.wants.RemoveHave(cid)
}

// AddBlock appends a block payload.
func (m *Message) AddBlock(cid c.Cid, data []byte) {
	m.blocks = append(m.blocks, Block{Cid: cid, Data: data})
}

// AddBlockPresence appends a presence entry.
func (m *Message) AddBlockPresence(cid c.Cid, kind PresenceKind) {
	m.presences = append(m.presences, BlockPresence{Cid: cid, Kind: kind})
}

// Blocks returns the staged Want-Block delta entries.
func (m *Message) Blocks() []wantlist.Entry {
	return m.wants.Blocks()
}

// WantHaveBlocks returns the staged Want-Have delta entries.
func (m *Message) WantHaveBlocks() []wantlist.Entry {
	return m.wants.WantHaveBlocks()
}

// Cancels returns the staged cancel CIDs, in the order they were recorded.
func (m *Message) Cancels() []c.Cid {
	return m.cancels
}

// BlockPayloads returns the staged block payloads.
func (m *Message) BlockPayloads() []Block {
	return m.blocks
}

// Presences returns the staged presence entries.
func (m *Message) Presences() []BlockPresence {
	return m.presences
}

// Empty reports whether the message carries nothing to send. The full flag
// does not by itself make a message non-empty: an empty full=true message
// is still empty (nothing to coalesce-send on its own).
func (m *Message) Empty() bool {
	return m.wants.Len() == 0 && len(m.cancels) == 0 && len(m.blocks) == 0 && len(m.presences) == 0
}

// HasBlockPayloads reports whether the message carries any block bytes. It
// plays no part in send decisions: a ledger sends any non-empty message.
func (m *Message) HasBlockPayloads() bool {
	return len(m.blocks) > 0
}
