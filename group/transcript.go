package group

import (
	"crypto/sha512"
	"encoding/binary"
	"hash"

	"github.com/gtank/ristretto255"
)

// Transcript accumulates domain-separated inputs to a Fiat-Shamir hash.
// The role a transcript is used for is fixed at construction time, so
// mixing up a rho-transcript with a challenge-transcript is a type error
// rather than a mistaken function call.
type Transcript struct {
	h hash.Hash
}

const transcriptPrefix = "FROST-RISTRETTO255-SHA512-v1-"

// role-specific label suffixes. Each constructor below fixes one of these so
// that a Transcript built for one purpose can never be squeezed and reused
// for another.
const (
	roleRho           = "rho"
	roleChallenge     = "challenge"
	roleKDF           = "kdf"
	roleRotationProof = "rotation-proof"
	roleToken         = "token"
)

func newTranscript(role string) *Transcript {
	t := &Transcript{h: sha512.New()}
	t.absorbRaw([]byte(transcriptPrefix))
	t.absorbRaw([]byte(role))
	return t
}

// NewRhoTranscript begins a transcript for deriving a signer's binding
// factor rho during the signing protocol's Round 2.
func NewRhoTranscript() *Transcript { return newTranscript(roleRho) }

// NewChallengeTranscript begins a transcript for deriving the Schnorr
// challenge c over the aggregated group commitment and message.
func NewChallengeTranscript() *Transcript { return newTranscript(roleChallenge) }

// NewKDFTranscript begins a transcript for deriving auxiliary key material
// from the reconstructed group secret (device key provisioning).
func NewKDFTranscript() *Transcript { return newTranscript(roleKDF) }

// NewRotationProofTranscript begins a transcript binding a proactive share
// refresh to the group it refreshes.
func NewRotationProofTranscript() *Transcript { return newTranscript(roleRotationProof) }

// NewTokenTranscript begins a transcript binding a capability token to the
// request it authorizes.
func NewTokenTranscript() *Transcript { return newTranscript(roleToken) }

// AbsorbLabel mixes a short ASCII label into the transcript, length-prefixed
// so that AbsorbLabel("ab").AbsorbLabel("c") cannot collide with
// AbsorbLabel("a").AbsorbLabel("bc").
func (t *Transcript) AbsorbLabel(label string) *Transcript {
	return t.absorbLenPrefixed([]byte(label))
}

// AbsorbPoint mixes the canonical encoding of p into the transcript.
func (t *Transcript) AbsorbPoint(p *Point) *Transcript {
	return t.absorbLenPrefixed(p.Bytes())
}

// AbsorbScalar mixes the canonical encoding of s into the transcript.
func (t *Transcript) AbsorbScalar(s *Scalar) *Transcript {
	return t.absorbLenPrefixed(s.Bytes())
}

// AbsorbBytes mixes an arbitrary byte string into the transcript, such as a
// message digest or a wire-format participant identifier.
func (t *Transcript) AbsorbBytes(b []byte) *Transcript {
	return t.absorbLenPrefixed(b)
}

// AbsorbUint64 mixes a fixed-width integer (a participant id, a threshold,
// a nonce index) into the transcript.
func (t *Transcript) AbsorbUint64(v uint64) *Transcript {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return t.absorbLenPrefixed(buf[:])
}

func (t *Transcript) absorbLenPrefixed(b []byte) *Transcript {
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(b)))
	t.absorbRaw(lenBuf[:])
	t.absorbRaw(b)
	return t
}

func (t *Transcript) absorbRaw(b []byte) {
	_, _ = t.h.Write(b)
}

// Squeeze finalizes the transcript into a single Scalar via wide reduction
// of the SHA-512 digest, and consumes the transcript: calling Squeeze twice
// on the same Transcript panics, since a Fiat-Shamir output must bind to one
// fixed set of absorbed inputs.
func (t *Transcript) Squeeze() *Scalar {
	if t.h == nil {
		panic("group: Transcript squeezed twice")
	}
	sum := t.h.Sum(nil)
	t.h = nil
	return &Scalar{s: ristretto255.NewScalar().FromUniformBytes(sum)}
}
