// Package wantlist holds the set of CIDs a node wants, with priorities and
// kinds. A Wantlist is not safe for concurrent use; the engine's
// single-driver discipline (see decision.Engine) is what makes that safe in
// practice.
package wantlist

import (
	c "github.com/RandyMcMillan/beetle/cid"
)

// Kind distinguishes a request for the full block from a request for a
// Have/DontHave presence reply.
type Kind int

const (
	// WantBlock asks the peer to send the block bytes.
	WantBlock Kind = iota
	// WantHave asks the peer whether it has the block (v1.2.0 only).
	WantHave
)

func (k Kind) String() string {
	if k == WantHave {
		return "want-have"
	}
	return "want-block"
}

// Entry is one CID's wantlist record.
type Entry struct {
	Cid      c.Cid
	Priority int32
	Kind     Kind
}

// Wantlist is an ordered mapping of CID to (kind, priority). A CID appears
// at most once; promotion from WantHave to WantBlock overwrites.
type Wantlist struct {
	set   map[c.Cid]Entry
	order []c.Cid // insertion order, for deterministic enumeration
}

// New returns an empty Wantlist.
func New() *Wantlist {
	return &Wantlist{set: make(map[c.Cid]Entry)}
}

// Len reports the number of distinct CIDs currently wanted.
func (w *Wantlist) Len() int {
	return len(w.set)
}

// Contains reports whether cid has any entry, and returns it.
func (w *Wantlist) Contains(cid c.Cid) (Entry, bool) {
	e, ok := w.set[cid]
	return e, ok
}

func (w *Wantlist) insert(cid c.Cid, e Entry) {
	if _, exists := w.set[cid]; !exists {
		w.order = append(w.order, cid)
	}
	w.set[cid] = e
}

// WantBlock sets the entry to WantBlock with the given priority, overwriting
// any WantHave entry for the same CID. Last write wins on priority.
func (w *Wantlist) WantBlock(cid c.Cid, priority int32) {
	w.insert(cid, Entry{Cid: cid, Priority: priority, Kind: WantBlock})
}

// WantHave sets the entry to WantHave, but only if no WantBlock entry
// already exists for cid — a block want always takes precedence.
func (w *Wantlist) WantHave(cid c.Cid, priority int32) {
	if e, ok := w.set[cid]; ok && e.Kind == WantBlock {
		return
	}
	w.insert(cid, Entry{Cid: cid, Priority: priority, Kind: WantHave})
}

// Remove deletes any entry for cid and reports whether one existed.
func (w *Wantlist) Remove(cid c.Cid) bool {
	if _, ok := w.set[cid]; !ok {
		return false
	}
	delete(w.set, cid)
	w.removeFromOrder(cid)
	return true
}

// RemoveBlock removes a WantBlock entry without the caller needing to know
// whether cancellation semantics apply; used by decision.Engine (via
// message.Message) when the peer has already answered with the block. It is
// a no-op if the entry is WantHave or
// absent, and reports whether a WantBlock entry was actually removed.
func (w *Wantlist) RemoveBlock(cid c.Cid) bool {
	e, ok := w.set[cid]
	if !ok || e.Kind != WantBlock {
		return false
	}
	delete(w.set, cid)
	w.removeFromOrder(cid)
	return true
}

// RemoveHave removes a WantHave entry only; used when a presence satisfies
// the want locally, without emitting a wire cancel.
func (w *Wantlist) RemoveHave(cid c.Cid) bool {
	e, ok := w.set[cid]
	if !ok || e.Kind != WantHave {
		return false
	}
	delete(w.set, cid)
	w.removeFromOrder(cid)
	return true
}

func (w *Wantlist) removeFromOrder(cid c.Cid) {
	for i, c2 := range w.order {
		if c2 == cid {
			w.order = append(w.order[:i], w.order[i+1:]...)
			return
		}
	}
}

// Entries returns every entry, in insertion order.
func (w *Wantlist) Entries() []Entry {
	out := make([]Entry, 0, len(w.order))
	for _, cid := range w.order {
		out = append(out, w.set[cid])
	}
	return out
}

// Blocks returns every WantBlock entry, in insertion order.
func (w *Wantlist) Blocks() []Entry {
	var out []Entry
	for _, cid := range w.order {
		if e := w.set[cid]; e.Kind == WantBlock {
			out = append(out, e)
		}
	}
	return out
}

// WantHaveBlocks returns every WantHave entry, in insertion order.
func (w *Wantlist) WantHaveBlocks() []Entry {
	var out []Entry
	for _, cid := range w.order {
		if e := w.set[cid]; e.Kind == WantHave {
			out = append(out, e)
		}
	}
	return out
}
