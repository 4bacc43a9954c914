// Package cid re-exports the content identifier type used across the
// bitswap engine so callers don't have to import go-cid directly.
package cid

import (
	gocid "github.com/ipfs/go-cid"
)

// Cid is the content identifier the wantlist, message and decision packages
// key everything on. Equality and hashing are defined by the underlying
// codec, never by the engine.
type Cid = gocid.Cid

// Undef is the zero value of Cid, matching go-cid's own sentinel.
var Undef = gocid.Undef
