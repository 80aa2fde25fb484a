package signing

import (
	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/wire"
)

// Signature is a standard Schnorr signature, verifiable under the group
// public key.
type Signature struct {
	R *group.Point
	Z *group.Scalar
}

// Coordinator aggregates signers' round-1 commitments and round-2
// partial signatures into a final signature. Unlike a Session, a
// Coordinator is not itself a signer and holds no secret material; any
// peer, including an external aggregator with no share of its own, can
// play this role.
type Coordinator struct {
	signers            party.Set
	threshold          uint16
	message            []byte
	groupPublicKey     *group.Point
	verificationShares map[party.ID]*group.Point
}

// NewCoordinator builds a Coordinator for one (signer set, message)
// session. verificationShares must contain an entry for every id in
// signers.
func NewCoordinator(
	signers party.Set,
	threshold uint16,
	message []byte,
	groupPublicKey *group.Point,
	verificationShares map[party.ID]*group.Point,
) *Coordinator {
	return &Coordinator{
		signers:            signers,
		threshold:          threshold,
		message:            message,
		groupPublicKey:     groupPublicKey,
		verificationShares: verificationShares,
	}
}

// Aggregate validates every partial signature against its signer's
// verification share and combines them into a final signature. Every
// signer's binding factor and Lagrange coefficient are bound to the full
// signer set, so a single bad or missing partial is unrecoverable within
// this session: the group commitment R already includes the failing
// signer's nonce commitments, and the remaining partials cannot be
// recombined for a reduced subset without a fresh signing round.
// Aggregate therefore names every failing signer in the returned invalid
// list and aborts — with InsufficientSigners if fewer than threshold
// valid partials remain, with VerificationFailed naming the first
// offender otherwise — and the caller retries as a new session among the
// remaining honest signers.
func (co *Coordinator) Aggregate(
	commitments map[party.ID]*wire.SigningCommitmentMessage,
	partials map[party.ID]*wire.SigningPartialMessage,
) (*Signature, []party.ID, error) {
	for _, id := range co.signers {
		if _, ok := commitments[id]; !ok {
			return nil, nil, &ferrors.InsufficientSigners{Have: uint16(len(commitments)), Need: uint16(len(co.signers))}
		}
	}

	rho, err := computeBindingFactors(co.signers, co.message, commitments)
	if err != nil {
		return nil, nil, err
	}

	r := computeGroupCommitment(co.signers, commitments, rho)
	c := computeChallenge(r, co.groupPublicKey, co.message)

	z := group.NewScalar()
	var invalid []party.ID
	validCount := uint16(0)

	for _, id := range co.signers {
		partial, ok := partials[id]
		if !ok {
			invalid = append(invalid, id)
			continue
		}

		lambda, err := party.LagrangeCoefficient(id, co.signers)
		if err != nil {
			return nil, nil, err
		}

		commitment := commitments[id]
		verificationShare, ok := co.verificationShares[id]
		if !ok {
			return nil, nil, &ferrors.InvalidParameters{Reason: "missing verification share for signer"}
		}

		if !verifyPartial(partial.Z, commitment.D, commitment.E, rho[id], lambda, c, verificationShare) {
			invalid = append(invalid, id)
			continue
		}

		z = group.Add(z, partial.Z)
		validCount++
	}

	if validCount < co.threshold {
		return nil, invalid, &ferrors.InsufficientSigners{Have: validCount, Need: co.threshold}
	}
	if len(invalid) > 0 {
		return nil, invalid, &ferrors.VerificationFailed{
			Participant: uint16(invalid[0]),
			Reason:      "partial signature does not verify against signer commitments",
		}
	}

	sig := &Signature{R: r, Z: z}
	if !Verify(co.groupPublicKey, co.message, sig) {
		return nil, nil, &ferrors.VerificationFailed{Reason: "aggregated signature does not verify under group public key"}
	}

	return sig, nil, nil
}

// Verify checks that sig is a valid Schnorr signature over message under
// groupPublicKey: z·G == R + c·PK.
func Verify(groupPublicKey *group.Point, message []byte, sig *Signature) bool {
	c := computeChallenge(sig.R, groupPublicKey, message)
	lhs := group.BaseMul(sig.Z)
	rhs := group.AddPoints(sig.R, group.ScalarMul(c, groupPublicKey))
	return lhs.Equal(rhs)
}
