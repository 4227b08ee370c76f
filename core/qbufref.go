package core

import (
	"github.com/google/uuid"
)

// QBufRef opaquely and uniquely identifies a query buffer for the lifetime
// of the owning process. Refs are never reused, and no durability is
// required across a restart (spec §1 Non-goals), so a random UUID is a
// sufficient collision-resistant scheme (spec §9 open question).
type QBufRef uuid.UUID

// NewQBufRef allocates a fresh, unique QBufRef.
func NewQBufRef() QBufRef {
	return QBufRef(uuid.New())
}

// String renders the ref in canonical UUID form.
func (r QBufRef) String() string {
	return uuid.UUID(r).String()
}

// Bytes returns the raw 16-byte representation, used as the identity
// component of the composite storage key (keycodec.EncodeCompositeKey).
func (r QBufRef) Bytes() []byte {
	b := uuid.UUID(r)
	out := make([]byte, len(b))
	copy(out, b[:])
	return out
}

// IsZero reports whether r is the zero-value ref (never issued by
// NewQBufRef, used as a sentinel for "no ref").
func (r QBufRef) IsZero() bool {
	return r == QBufRef{}
}
