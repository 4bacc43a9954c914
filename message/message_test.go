package message

import (
	"testing"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

func testCid(t *testing.T, s string) gocid.Cid {
	t.Helper()
	mh, err := multihash.Sum([]byte(s), multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("hashing %q: %v", s, err)
	}
	return gocid.NewCidV1(gocid.Raw, mh)
}

func TestNewMessageEmptyRegardlessOfFull(t *testing.T) {
	m := New(true)
	if !m.Empty() {
		t.Fatalf("a fresh full=true message with nothing staged should still be Empty")
	}
	if !m.Full {
		t.Fatalf("Full should be preserved as constructed")
	}
}

func TestCancelBlockRemovesStagedWantAndRecordsCancel(t *testing.T) {
	m := New(false)
	cid := testCid(t, "a")
	m.WantBlock(cid, 1)
	m.CancelBlock(cid)

	if len(m.Blocks()) != 0 {
		t.Fatalf("CancelBlock should drop the staged want, got %v", m.Blocks())
	}
	cancels := m.Cancels()
	if len(cancels) != 1 || cancels[0] != cid {
		t.Fatalf("Cancels() = %v, want [%v]", cancels, cid)
	}
}

func TestRemoveWantBlockDoesNotEmitCancel(t *testing.T) {
	m := New(false)
	cid := testCid(t, "a")
	m.WantBlock(cid, 1)
	m.RemoveWantBlock(cid)

	if !m.Empty() {
		t.Fatalf("message should be empty after RemoveWantBlock, got blocks=%v cancels=%v", m.Blocks(), m.Cancels())
	}
}

func TestRemoveWantHaveDoesNotEmitCancel(t *testing.T) {
	m := New(false)
	cid := testCid(t, "a")
	m.WantHave(cid, 1)
	m.RemoveWantHave(cid)

	if !m.Empty() {
		t.Fatalf("message should be empty after RemoveWantHave, got wantHaves=%v cancels=%v", m.WantHaveBlocks(), m.Cancels())
	}
}

func TestAddBlockMakesMessageNonEmptyAndCountsAsPayload(t *testing.T) {
	m := New(false)
	cid := testCid(t, "a")
	m.AddBlock(cid, []byte("hello"))

	if m.Empty() {
		t.Fatalf("message carrying a block payload must not be Empty")
	}
	if !m.HasBlockPayloads() {
		t.Fatalf("HasBlockPayloads should be true")
	}
	payloads := m.BlockPayloads()
	if len(payloads) != 1 || payloads[0].Cid != cid || string(payloads[0].Data) != "hello" {
		t.Fatalf("BlockPayloads() = %+v, unexpected", payloads)
	}
}

func TestAddBlockPresence(t *testing.T) {
	m := New(false)
	cid := testCid(t, "a")
	m.AddBlockPresence(cid, Have)

	presences := m.Presences()
	if len(presences) != 1 || presences[0].Cid != cid || presences[0].Kind != Have {
		t.Fatalf("Presences() = %+v, unexpected", presences)
	}
}
