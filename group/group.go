// Package group wraps the Ristretto255 prime-order group for use by the
// rest of the module. It is the one place that talks to
// github.com/gtank/ristretto255 directly; every other package deals only in
// Scalar and Point.
//
// Ristretto255 has cofactor 1 and a canonical encoding for every element, so
// Decode doubles as the rejection of malformed or non-canonical wire data:
// a scalar that is not fully reduced, or a point that is not a valid group
// element, is an error here rather than further up the stack.
package group

import (
	"crypto/sha512"
	"errors"
	"io"

	"github.com/gtank/ristretto255"
)

// ErrNonCanonical is returned by DecodeScalar and DecodePoint when the
// input does not round-trip through the canonical encoding.
var ErrNonCanonical = errors.New("group: non-canonical encoding")

// ErrIdentity is returned by DecodePoint when the identity element is
// decoded in a context where it is disallowed (a public key, a nonce
// commitment, a verification share).
var ErrIdentity = errors.New("group: identity element not allowed here")

// ScalarSize and PointSize are the canonical encoded lengths, in bytes, of a
// Scalar and a Point.
const (
	ScalarSize = 32
	PointSize  = 32
)

// Scalar is an element of Z/qZ, the Ristretto255 scalar field.
type Scalar struct {
	s *ristretto255.Scalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{s: ristretto255.NewScalar()}
}

// RandomScalar draws a uniform scalar from rng, which must yield
// cryptographically strong randomness.
func RandomScalar(rng io.Reader) (*Scalar, error) {
	var buf [64]byte
	if _, err := io.ReadFull(rng, buf[:]); err != nil {
		return nil, err
	}
	s := ristretto255.NewScalar().FromUniformBytes(buf[:])
	return &Scalar{s: s}, nil
}

// ScalarFromUint64 embeds a small non-secret integer (a participant id, a
// threshold) as a scalar. It is used for polynomial evaluation points and
// Lagrange coefficients, never for secret material.
func ScalarFromUint64(v uint64) *Scalar {
	var buf [32]byte
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
	buf[4] = byte(v >> 32)
	buf[5] = byte(v >> 40)
	buf[6] = byte(v >> 48)
	buf[7] = byte(v >> 56)
	s := ristretto255.NewScalar()
	if err := s.Decode(buf[:]); err != nil {
		// buf encodes a value far smaller than q; this cannot fail.
		panic("group: impossible scalar decode failure: " + err.Error())
	}
	return &Scalar{s: s}
}

// DecodeScalar decodes a canonical little-endian scalar encoding, rejecting
// values that are not fully reduced mod q.
func DecodeScalar(data []byte) (*Scalar, error) {
	if len(data) != ScalarSize {
		return nil, ErrNonCanonical
	}
	s := ristretto255.NewScalar()
	if err := s.Decode(data); err != nil {
		return nil, ErrNonCanonical
	}
	return &Scalar{s: s}, nil
}

// Encode appends the canonical little-endian encoding of s to b and returns
// the extended slice.
func (s *Scalar) Encode(b []byte) []byte {
	return s.s.Encode(b)
}

// Bytes returns the canonical 32-byte encoding of s.
func (s *Scalar) Bytes() []byte {
	return s.Encode(make([]byte, 0, ScalarSize))
}

// Add returns x + y.
func Add(x, y *Scalar) *Scalar {
	return &Scalar{s: ristretto255.NewScalar().Add(x.s, y.s)}
}

// Sub returns x - y.
func Sub(x, y *Scalar) *Scalar {
	return &Scalar{s: ristretto255.NewScalar().Subtract(x.s, y.s)}
}

// Mul returns x * y.
func Mul(x, y *Scalar) *Scalar {
	return &Scalar{s: ristretto255.NewScalar().Multiply(x.s, y.s)}
}

// Neg returns -x.
func Neg(x *Scalar) *Scalar {
	return &Scalar{s: ristretto255.NewScalar().Negate(x.s)}
}

// Inv returns the multiplicative inverse of x. x must be non-zero.
func Inv(x *Scalar) *Scalar {
	return &Scalar{s: ristretto255.NewScalar().Invert(x.s)}
}

// Equal reports whether x and y represent the same scalar.
func (s *Scalar) Equal(other *Scalar) bool {
	return s.s.Equal(other.s) == 1
}

// IsZero reports whether s is the additive identity.
func (s *Scalar) IsZero() bool {
	return s.Equal(NewScalar())
}

// Clone returns an independent copy of s.
func (s *Scalar) Clone() *Scalar {
	c := ristretto255.NewScalar()
	c.Add(c, s.s)
	return &Scalar{s: c}
}

// Zeroize destructively overwrites the scalar's backing storage. After
// Zeroize, s must not be used again.
func (s *Scalar) Zeroize() {
	if s == nil || s.s == nil {
		return
	}
	zero := ristretto255.NewScalar()
	s.s.Add(zero, zero)
	s.s = nil
}

// Zeroized reports whether s has already had its backing storage cleared
// by Zeroize. Callers outside this package use this instead of IsZero to
// check a scalar post-zeroize: IsZero calls Equal, which dereferences the
// (now nil) backing scalar.
func (s *Scalar) Zeroized() bool {
	return s == nil || s.s == nil
}

// Point is an element of the Ristretto255 group.
type Point struct {
	p *ristretto255.Element
}

// Identity returns the group identity element.
func Identity() *Point {
	return &Point{p: ristretto255.NewElement()}
}

// BaseMul returns s*G, where G is the distinguished group generator.
func BaseMul(s *Scalar) *Point {
	return &Point{p: ristretto255.NewElement().ScalarBaseMult(s.s)}
}

// ScalarMul returns s*p.
func ScalarMul(s *Scalar, p *Point) *Point {
	return &Point{p: ristretto255.NewElement().ScalarMult(s.s, p.p)}
}

// AddPoints returns a + b.
func AddPoints(a, b *Point) *Point {
	return &Point{p: ristretto255.NewElement().Add(a.p, b.p)}
}

// SubPoints returns a - b.
func SubPoints(a, b *Point) *Point {
	return &Point{p: ristretto255.NewElement().Subtract(a.p, b.p)}
}

// SumPoints returns the sum of all given points, or the identity if pts is
// empty.
func SumPoints(pts ...*Point) *Point {
	acc := Identity()
	for _, p := range pts {
		acc = AddPoints(acc, p)
	}
	return acc
}

// DecodePoint decodes a canonical point encoding. If allowIdentity is false
// (the common case: public keys, nonce commitments, verification shares),
// the identity element is rejected.
func DecodePoint(data []byte, allowIdentity bool) (*Point, error) {
	if len(data) != PointSize {
		return nil, ErrNonCanonical
	}
	e := ristretto255.NewElement()
	if err := e.Decode(data); err != nil {
		return nil, ErrNonCanonical
	}
	pt := &Point{p: e}
	if !allowIdentity && pt.IsIdentity() {
		return nil, ErrIdentity
	}
	return pt, nil
}

// Encode appends the canonical encoding of p to b and returns the extended
// slice.
func (p *Point) Encode(b []byte) []byte {
	return p.p.Encode(b)
}

// Bytes returns the canonical 32-byte encoding of p.
func (p *Point) Bytes() []byte {
	return p.Encode(make([]byte, 0, PointSize))
}

// Equal reports whether p and other represent the same group element.
func (p *Point) Equal(other *Point) bool {
	return p.p.Equal(other.p) == 1
}

// IsIdentity reports whether p is the group identity.
func (p *Point) IsIdentity() bool {
	return p.Equal(Identity())
}

const hTag = "FROST-RISTRETTO255-SHA512-v1-PEDERSEN-H"

// H returns the second Pedersen generator, independent of G in the sense
// that no party knows its discrete log with respect to G. It is
// recomputed deterministically from the published tag string on every
// call rather than cached in package-level mutable state, so there is no
// global state to reason about or to accidentally share across
// ceremonies.
func H() *Point {
	digest := sha512.Sum512([]byte(hTag))
	return &Point{p: ristretto255.NewElement().FromUniformBytes(digest[:])}
}
