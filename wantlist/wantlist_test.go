package wantlist

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

func TestWantBlockThenWantHaveIsIgnored(t *testing.T) {
	w := New()
	cid := testCid(t, "a")
	w.WantBlock(cid, 1)
	w.WantHave(cid, 5)

	e, ok := w.Contains(cid)
	if !ok {
		t.Fatalf("expected entry for %v", cid)
	}
	if e.Kind != WantBlock {
		t.Fatalf("WantHave must not downgrade an existing WantBlock entry, got kind %v", e.Kind)
	}
	if e.Priority != 1 {
		t.Fatalf("priority should stay at the WantBlock value 1, got %d", e.Priority)
	}
}

func TestWantHaveThenWantBlockUpgrades(t *testing.T) {
	w := New()
	cid := testCid(t, "a")
	w.WantHave(cid, 5)
	w.WantBlock(cid, 9)

	e, ok := w.Contains(cid)
	if !ok || e.Kind != WantBlock || e.Priority != 9 {
		t.Fatalf("expected upgraded WantBlock entry priority 9, got %+v ok=%v", e, ok)
	}
	if w.Len() != 1 {
		t.Fatalf("a CID must appear at most once, got Len()=%d", w.Len())
	}
}

func TestRemoveBlockIgnoresWantHaveEntry(t *testing.T) {
	w := New()
	cid := testCid(t, "a")
	w.WantHave(cid, 1)
	if w.RemoveBlock(cid) {
		t.Fatalf("RemoveBlock must not remove a WantHave entry")
	}
	if _, ok := w.Contains(cid); !ok {
		t.Fatalf("entry should still be present")
	}
}

func TestRemoveHaveIgnoresWantBlockEntry(t *testing.T) {
	w := New()
	cid := testCid(t, "a")
	w.WantBlock(cid, 1)
	if w.RemoveHave(cid) {
		t.Fatalf("RemoveHave must not remove a WantBlock entry")
	}
}

func TestEnumerationOrderIsInsertionOrder(t *testing.T) {
	w := New()
	a, b, c := testCid(t, "a"), testCid(t, "b"), testCid(t, "c")
	w.WantBlock(b, 1)
	w.WantHave(a, 1)
	w.WantBlock(c, 1)

	var got []gocid.Cid
	for _, e := range w.Entries() {
		got = append(got, e.Cid)
	}
	want := []gocid.Cid{b, a, c}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Entries() order = %v, want %v", got, want)
		}
	}
}

func TestRemoveDeletesRegardlessOfKind(t *testing.T) {
	w := New()
	cid := testCid(t, "a")
	w.WantHave(cid, 1)
	if !w.Remove(cid) {
		t.Fatalf("Remove should report true for an existing entry")
	}
	if w.Len() != 0 {
		t.Fatalf("expected empty wantlist after Remove, got Len()=%d", w.Len())
	}
	if w.Remove(cid) {
		t.Fatalf("Remove on an absent CID should report false")
	}
}

func TestBlocksAndWantHaveBlocksPartitionByKind(t *testing.T) {
	w := New()
	a, b := testCid(t, "a"), testCid(t, "b")
	w.WantBlock(a, 1)
	w.WantHave(b, 1)

	if blocks := w.Blocks(); len(blocks) != 1 || blocks[0].Cid != a {
		t.Fatalf("Blocks() = %v, want just %v", blocks, a)
	}
	if haves := w.WantHaveBlocks(); len(haves) != 1 || haves[0].Cid != b {
		t.Fatalf("WantHaveBlocks() = %v, want just %v", haves, b)
	}
}
