// Package polynomial implements Shamir secret-sharing polynomials and
// their Feldman and Pedersen verifiable-secret-sharing commitments over
// group.Scalar and group.Point.
package polynomial

import (
	"io"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
)

// Polynomial is a list of coefficients, constant term first:
// coefficients[0] is the secret (or, for a proactive refresh polynomial,
// zero), coefficients[i] for i>0 are uniform random.
type Polynomial struct {
	Coefficients []*group.Scalar
}

// Generate builds a degree-(threshold-1) polynomial with the given
// constant term, drawing the remaining threshold-1 coefficients uniformly
// at random from rng. Passing a zero constant term produces the
// zero-sum refresh polynomial used by proactive share rotation; passing a
// freshly random constant term produces a keygen polynomial.
func Generate(rng io.Reader, threshold uint16, constant *group.Scalar) (*Polynomial, error) {
	if threshold == 0 {
		return nil, &ferrors.InvalidParameters{Reason: "threshold must be at least 1"}
	}

	coeffs := make([]*group.Scalar, threshold)
	coeffs[0] = constant

	for i := 1; i < int(threshold); i++ {
		s, err := group.RandomScalar(rng)
		if err != nil {
			return nil, &ferrors.RngFailure{Reason: err.Error()}
		}
		coeffs[i] = s
	}

	return &Polynomial{Coefficients: coeffs}, nil
}

// Degree returns the polynomial's degree, one less than its number of
// coefficients.
func (p *Polynomial) Degree() int {
	return len(p.Coefficients) - 1
}

// Evaluate computes f(x) by Horner's method.
func (p *Polynomial) Evaluate(x *group.Scalar) *group.Scalar {
	acc := group.NewScalar()
	for i := len(p.Coefficients) - 1; i >= 0; i-- {
		acc = group.Add(group.Mul(acc, x), p.Coefficients[i])
	}
	return acc
}

// EvaluateAt is a convenience wrapper evaluating at a participant's id.
func (p *Polynomial) EvaluateAt(id party.ID) *group.Scalar {
	return p.Evaluate(id.Scalar())
}

// Commit returns the vector of Feldman commitments A_k = coefficients[k]*G,
// one per coefficient, constant term first.
func (p *Polynomial) Commit() []*group.Point {
	commitments := make([]*group.Point, len(p.Coefficients))
	for i, c := range p.Coefficients {
		commitments[i] = group.BaseMul(c)
	}
	return commitments
}

// PedersenCommitments holds the combined commitment vector Pedersen VSS
// publishes for a dealer's hiding polynomial f and blinding polynomial g:
// C_k = f_k*G + g_k*H for each coefficient index k. Unlike a bare Feldman
// commitment vector, this hides the coefficients of f (and hence the
// dealt secret) information-theoretically, since g_k acts as a one-time
// pad on the group element, so long as nobody knows log_G(H). A dealer
// publishes this alongside the plain Feldman vector from Commit so that
// share verification can use the hiding C_k while public-key assembly
// uses the non-hiding Feldman A_k.
type PedersenCommitments struct {
	Points []*group.Point
}

// PedersenCommit builds the combined Pedersen commitment vector for a
// hiding polynomial f and an independently-generated blinding polynomial
// g of equal degree.
func PedersenCommit(f, g *Polynomial) (*PedersenCommitments, error) {
	if len(f.Coefficients) != len(g.Coefficients) {
		return nil, &ferrors.InvalidParameters{Reason: "hiding and blinding polynomials must have equal degree"}
	}

	points := make([]*group.Point, len(f.Coefficients))
	for i := range f.Coefficients {
		fg := group.BaseMul(f.Coefficients[i])
		gh := group.ScalarMul(g.Coefficients[i], group.H())
		points[i] = group.AddPoints(fg, gh)
	}
	return &PedersenCommitments{Points: points}, nil
}

// EvaluateCommitmentVector computes sum_k points[k] * id^k by Horner's
// method on the group elements themselves, without ever learning the
// underlying scalar coefficients. Applied to a Feldman vector A this
// yields A(id) = a(id)*G, the public verification-share contribution of
// one dealer; applied to the combined Pedersen vector C this yields the
// left-hand side of the commitment-evaluation identity used by
// VerifyShare.
func EvaluateCommitmentVector(points []*group.Point, id party.ID) *group.Point {
	x := id.Scalar()
	acc := group.Identity()
	for i := len(points) - 1; i >= 0; i-- {
		acc = group.AddPoints(group.ScalarMul(x, acc), points[i])
	}
	return acc
}

// VerifyShare checks that a pair of shares (fShare, gShare) — the
// evaluations of the dealer's f and g at id — is consistent with the
// published Pedersen commitment vector, by recomputing
// sum_k C_k * id^k via Horner's method on the commitments themselves and
// comparing it against fShare*G + gShare*H. A mismatch returns
// VerificationFailed naming id, the participant the share was dealt to;
// VerifyShare does not know the dealer, so attributing the failure to the
// dealer is the caller's job.
func VerifyShare(commitments *PedersenCommitments, id party.ID, fShare, gShare *group.Scalar) error {
	acc := EvaluateCommitmentVector(commitments.Points, id)

	lhs := group.AddPoints(group.BaseMul(fShare), group.ScalarMul(gShare, group.H()))

	if !lhs.Equal(acc) {
		return &ferrors.VerificationFailed{
			Participant: uint16(id),
			Reason:      "share does not match Pedersen commitment",
		}
	}
	return nil
}

// Zeroize clears every coefficient of p. After Zeroize, p must not be
// used again.
func (p *Polynomial) Zeroize() {
	for _, c := range p.Coefficients {
		c.Zeroize()
	}
}
