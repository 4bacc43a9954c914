package decision

import (
	"testing"
	"time"

	gocid "github.com/ipfs/go-cid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multihash"

	"github.com/RandyMcMillan/beetle/protocol"
)

func testCid(t *testing.T, s string) gocid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(s), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("hashing %q: %v", s, err)
	}
	return gocid.NewCidV1(gocid.Raw, mh)
}

func testPeer(t *testing.T, s string) peer.ID {
	t.Helper()
	return peer.ID(s)
}

func TestNewLedgerStartsFullWithTimerInThePast(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)

	if !l.PendingEmpty() {
		t.Fatalf("a fresh ledger's pending message should start empty")
	}
	if !l.pending.Full {
		t.Fatalf("a fresh ledger's pending message should start Full=true")
	}
	if l.ConnState() != Disconnected {
		t.Fatalf("a fresh ledger should start Disconnected, got %v", l.ConnState())
	}
	// Staging something and polling immediately should demand a dial: the
	// timer was seeded in the past so it never blocks the very first send.
	l.pending.WantBlock(testCid(t, "a"), 1)
	if got := l.poll(now); got != ledgerActionDial {
		t.Fatalf("poll() = %v, want ledgerActionDial", got)
	}
}

func TestPollRespectsMessageDelayAfterSend(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)
	l.markConnected()
	l.pending.WantBlock(testCid(t, "a"), 1)

	if got := l.poll(now); got != ledgerActionSend {
		t.Fatalf("poll() = %v, want ledgerActionSend", got)
	}
	l.takeSend(now)
	l.pending.WantBlock(testCid(t, "b"), 1)

	if got := l.poll(now.Add(MessageDelay - time.Millisecond)); got != ledgerActionNone {
		t.Fatalf("poll() just under MessageDelay = %v, want ledgerActionNone", got)
	}
	if got := l.poll(now.Add(MessageDelay)); got != ledgerActionSend {
		t.Fatalf("poll() at MessageDelay = %v, want ledgerActionSend", got)
	}
}

func TestPollNeverDialsWhileConnected(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)
	l.markConnected()
	l.pending.WantBlock(testCid(t, "a"), 1)

	if got := l.poll(now); got != ledgerActionSend {
		t.Fatalf("a connected ledger with pending work should demand a send, not a dial; got %v", got)
	}
}

func TestPollDoesNothingWhenPendingEmpty(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)
	l.markConnected()
	if got := l.poll(now); got != ledgerActionNone {
		t.Fatalf("poll() on an empty pending message = %v, want ledgerActionNone", got)
	}
}

func TestTakeSendResetsPendingAndClearsFull(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)
	msg := l.takeSend(now)
	if !msg.Full {
		t.Fatalf("the message taken from a fresh ledger should have Full=true")
	}
	if l.pending.Full {
		t.Fatalf("replacement pending message should itself start Full=false")
	}
}

func TestMarkDisconnectedClearsAgreedProtocol(t *testing.T) {
	now := time.Now()
	l := newLedger(testPeer(t, "p1"), now)
	l.markConnected()
	l.setAgreedProtocol(protocol.V120)
	l.markDisconnected()

	if _, ok := l.AgreedProtocol(); ok {
		t.Fatalf("AgreedProtocol should be cleared on disconnect")
	}
	if l.ConnState() != Disconnected {
		t.Fatalf("ConnState() = %v, want Disconnected", l.ConnState())
	}
}
