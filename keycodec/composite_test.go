package keycodec

import (
	"bytes"
	"testing"

	"github.com/INLOpen/nexusqbuf/core"
)

func TestCompositeKeyTiebreakOrder(t *testing.T) {
	ref := core.NewQBufRef()
	sortKey := []byte{0x01, 0x02}

	k1 := CompositeKey(ref, sortKey, 1, 0)
	k2 := CompositeKey(ref, sortKey, 1, 1)
	k3 := CompositeKey(ref, sortKey, 2, 0)

	if bytes.Compare(k1, k2) >= 0 {
		t.Fatal("expected row_index 0 to sort before row_index 1 within the same chunk")
	}
	if bytes.Compare(k2, k3) >= 0 {
		t.Fatal("expected chunk 1 to sort before chunk 2")
	}
}

func TestBucketPrefixIsolatesRefs(t *testing.T) {
	refA := core.NewQBufRef()
	refB := core.NewQBufRef()

	kA := CompositeKey(refA, []byte{0x01}, 0, 0)
	lowB, highB := DeleteAllPrefix(refB)

	if bytes.Compare(kA, lowB) >= 0 && bytes.Compare(kA, highB) < 0 {
		t.Fatal("refA's key must not fall within refB's scan bounds")
	}
}

func TestBucketUpperBoundCoversAllKeys(t *testing.T) {
	ref := core.NewQBufRef()
	low, high := DeleteAllPrefix(ref)

	keys := [][]byte{
		CompositeKey(ref, []byte{0x00}, 0, 0),
		CompositeKey(ref, []byte{0xFF, 0xFF, 0xFF}, 999, 999),
		CompositeKey(ref, nil, 0, 0),
	}
	for _, k := range keys {
		if bytes.Compare(k, low) < 0 || bytes.Compare(k, high) >= 0 {
			t.Fatalf("key %x not within [low, high) bounds", k)
		}
	}
}

func TestBucketPrefixLowerBoundIsInclusive(t *testing.T) {
	ref := core.NewQBufRef()
	low, _ := DeleteAllPrefix(ref)
	k := CompositeKey(ref, []byte{0x00}, 0, 0)
	if bytes.Compare(k, low) < 0 {
		t.Fatal("expected composite key to sort at or after the bucket's lower bound")
	}
}
