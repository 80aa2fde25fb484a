// Package party holds the identity of a protocol participant and the
// Lagrange-coefficient arithmetic used to reconstruct or combine
// threshold shares.
package party

import (
	"slices"
	"sort"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
)

// ID identifies a participant by its Shamir evaluation point. Zero is
// reserved for the group secret itself (f(0)) and is never a valid
// participant id.
type ID uint16

// MaxParticipants bounds the id space: every valid ID lies in
// [1, MaxParticipants].
const MaxParticipants ID = 1000

// Scalar embeds id as a group.Scalar, for use as a polynomial evaluation
// point.
func (id ID) Scalar() *group.Scalar {
	return group.ScalarFromUint64(uint64(id))
}

// Set is a deduplicated, ascending-sorted collection of participant ids,
// the signer or dealer set a protocol round operates over.
type Set []ID

// NewSet builds a Set from ids, sorting and rejecting duplicates and the
// reserved id 0.
func NewSet(ids []ID) (Set, error) {
	cp := append(Set(nil), ids...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })

	for i, id := range cp {
		if id == 0 {
			return nil, &ferrors.InvalidParameters{Reason: "participant id 0 is reserved"}
		}
		if id > MaxParticipants {
			return nil, &ferrors.InvalidParameters{Reason: "participant id exceeds the maximum"}
		}
		if i > 0 && cp[i-1] == id {
			return nil, &ferrors.InvalidParameters{Reason: "duplicate participant id in set"}
		}
	}

	return cp, nil
}

// Contains reports whether id is a member of s.
func (s Set) Contains(id ID) bool {
	_, found := slices.BinarySearch(s, id)
	return found
}

// LagrangeCoefficient returns lambda_self, the Lagrange basis coefficient
// evaluating the unique degree-(|s|-1) polynomial that is 1 at self and 0
// at every other member of s, evaluated at x=0.
func LagrangeCoefficient(self ID, s Set) (*group.Scalar, error) {
	if !s.Contains(self) {
		return nil, &ferrors.InvalidParameters{Reason: "self id not a member of set"}
	}

	num := group.ScalarFromUint64(1)
	den := group.ScalarFromUint64(1)

	selfScalar := self.Scalar()

	for _, other := range s {
		if other == self {
			continue
		}
		otherScalar := other.Scalar()

		num = group.Mul(num, otherScalar)
		den = group.Mul(den, group.Sub(otherScalar, selfScalar))
	}

	return group.Mul(num, group.Inv(den)), nil
}
