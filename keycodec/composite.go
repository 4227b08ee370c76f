package keycodec

import (
	"encoding/binary"

	"github.com/INLOpen/nexusqbuf/core"
)

// BucketTag is the fixed prefix every qbuf-owned key in the backend carries,
// analogous to a column-family name. The backend's expiry subsystem
// recognizes a bucket as qbuf-owned by this literal tag; any other prefix
// is rejected as NotAQbuf.
const BucketTag = "$abuf"

// CompositeKey assembles the full storage key for one row:
//
//	<bucket_tag><0x00><qbuf_ref><sort_key><chunk_id><row_index>
//
// Byte-order comparison of two such keys for the same qbuf_ref agrees with
// the logical (sort_key, chunk_id, row_index) ordering, which is exactly
// the tie-break order the spec requires: rows that compare equal on the
// ORDER BY key are then ordered by arrival (chunk_id, row_index) so that
// pagination over a qbuf is stable (spec §4.2, §7).
func CompositeKey(ref core.QBufRef, sortKey []byte, chunkID, rowIndex uint64) []byte {
	out := make([]byte, 0, len(BucketTag)+1+16+len(sortKey)+16)
	out = append(out, BucketTag...)
	out = append(out, 0x00)
	out = append(out, ref.Bytes()...)
	out = append(out, sortKey...)

	var tail [16]byte
	binary.BigEndian.PutUint64(tail[0:8], chunkID)
	binary.BigEndian.PutUint64(tail[8:16], rowIndex)
	out = append(out, tail[:]...)
	return out
}

// BucketPrefix returns the common prefix of every key belonging to ref,
// i.e. CompositeKey(ref, nil, 0, 0) with the trailing tiebreaker zeroes
// stripped. Used as the inclusive lower scan bound.
func BucketPrefix(ref core.QBufRef) []byte {
	out := make([]byte, 0, len(BucketTag)+1+16)
	out = append(out, BucketTag...)
	out = append(out, 0x00)
	out = append(out, ref.Bytes()...)
	return out
}

// BucketUpperBound returns the exclusive upper scan bound for ref: the
// lexicographically smallest byte string that is strictly greater than
// every key with prefix BucketPrefix(ref). Appending a single fixed byte
// does not suffice here — a real key can continue past that byte (the
// NULLS LAST sentinel lead byte is itself 0xFF, and every key carries a
// mandatory 16-byte chunk_id/row_index trailer after it), and a longer key
// that shares a byte-for-byte prefix with a shorter bound sorts after it,
// not before.
//
// The correct bound is the prefix's last non-0xFF byte incremented by one,
// with every following byte dropped (carrying through any trailing 0xFF
// bytes). BucketPrefix's own bytes (the bucket tag, NUL separator, and
// qbuf_ref) are never all 0xFF, so this always succeeds without needing
// the degenerate "append 0xFF" fallback.
func BucketUpperBound(ref core.QBufRef) []byte {
	prefix := BucketPrefix(ref)
	out := append([]byte(nil), prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	// Every byte was 0xFF: no finite successor exists in-place, so widen.
	return append(out, 0xFF)
}

// DeleteAllPrefix returns the [low, high) range that deletes every key a
// qbuf ever wrote, used by Manager.Delete / the expiry sweep (spec §4.6).
func DeleteAllPrefix(ref core.QBufRef) (low, high []byte) {
	return BucketPrefix(ref), BucketUpperBound(ref)
}
