package decision

import (
	"time"

	"github.com/RandyMcMillan/beetle/protocol"
)

// MaxProviders caps how many peers a single find_providers call broadcasts
// Want-Have to (spec.md §4.4, §5).
const MaxProviders = 10_000

// ProtocolConfig is the ordered, preference-ranked set of protocol ids an
// embedder supports, handed to the protocol selector at stream upgrade.
type ProtocolConfig struct {
	ProtocolIds []protocol.ID
}

// Config is the engine's tunable surface (spec.md §6). The zero value is
// not meaningful; use DefaultConfig and override fields as needed.
type Config struct {
	// MaxCachedPeers bounds the known_peers LRU.
	MaxCachedPeers int
	// MaxLedgers bounds the active-ledger LRU.
	MaxLedgers int
	// IdleTimeout is handed to the connection handler; the engine itself
	// does not enforce it.
	IdleTimeout time.Duration
	// Protocol is the ordered, preference-ranked protocol id set.
	Protocol ProtocolConfig
}

// DefaultConfig returns the documented defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		MaxCachedPeers: 20_000,
		MaxLedgers:     1_024,
		IdleTimeout:    30 * time.Second,
		Protocol:       ProtocolConfig{ProtocolIds: protocol.DefaultIDs},
	}
}
