// Package xlog wraps go-ipfs's structured logger the way
// github.com/ethereum/go-ethereum/log wraps log15 in the teacher codebase:
// one logger per package, key-value call sites, no format strings.
package xlog

import (
	logging "github.com/ipfs/go-log/v2"
)

// Logger is the per-package handle other packages hold as `var log =
// xlog.New("decision")`.
type Logger = *logging.ZapEventLogger

// New returns a named logger, matching eth/handler.go's one-logger-per-file
// convention (there it's a package-level `log` backed by log15; here it's
// go-log, the logger the bitswap lineage itself actually ships).
func New(name string) Logger {
	return logging.Logger(name)
}
