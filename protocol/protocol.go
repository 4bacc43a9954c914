// Package protocol enumerates the wire protocol versions the engine
// negotiates and picks the mutual best one at stream upgrade, the way
// eth/handler.go picks the highest shared eth/NN version.
package protocol

import (
	libp2pprotocol "github.com/libp2p/go-libp2p/core/protocol"
)

// ID is one bitswap wire protocol version.
type ID int

const (
	// Legacy is a pre-versioned alias, treated as equivalent to V100.
	Legacy ID = iota
	V100
	V110
	V120
)

// names maps each ID to the wire protocol string common deployments use
// (examples; an embedder may use different exact strings).
var names = map[ID]libp2pprotocol.ID{
	Legacy: "/bitswap",
	V100:   "/ipfs/bitswap/1.0.0",
	V110:   "/ipfs/bitswap/1.1.0",
	V120:   "/ipfs/bitswap/1.2.0",
}

// String returns the wire protocol name for id.
func (id ID) String() string {
	if n, ok := names[id]; ok {
		return string(n)
	}
	return "unknown"
}

// rank is the total order of preference: V120 > V110 > V100 > Legacy.
var rank = map[ID]int{
	Legacy: 0,
	V100:   1,
	V110:   2,
	V120:   3,
}

// SupportsPresence reports whether id supports Have/DontHave presences and
// Want-Have entries. Only V120 does.
func (id ID) SupportsPresence() bool {
	return id == V120
}

// SupportsWantHave reports whether id allows Want-Have entries on the wire.
// Only V120 does (spec.md §4.2 version gating table).
func (id ID) SupportsWantHave() bool {
	return id == V120
}

// DefaultIDs is the default protocol_config.protocol_ids ordering (spec.md §6).
var DefaultIDs = []ID{V120, V110, V100}

// WireIDs returns the libp2p wire protocol names for ids, in the same order,
// for registering stream handlers or advertising supported protocols.
func WireIDs(ids []ID) []libp2pprotocol.ID {
	out := make([]libp2pprotocol.ID, len(ids))
	for i, id := range ids {
		out[i] = names[id]
	}
	return out
}

// Parse returns the ID whose wire name matches name, if one is known.
func Parse(name libp2pprotocol.ID) (ID, bool) {
	for id, n := range names {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// Select picks the mutual protocol with the highest preference between
// local (in the embedder's configured preference order) and remote (the
// set the peer advertised). It returns false if the intersection is empty,
// in which case the stream upgrade must fail.
func Select(local []ID, remote []ID) (ID, bool) {
	remoteSet := make(map[ID]bool, len(remote))
	for _, r := range remote {
		remoteSet[r] = true
	}
	best, found := ID(0), false
	for _, l := range local {
		if !remoteSet[l] {
			continue
		}
		if !found || rank[l] > rank[best] {
			best, found = l, true
		}
	}
	return best, found
}
