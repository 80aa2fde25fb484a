package signing

import (
	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/wire"
)

// bindingFactors holds one binding factor rho_j per active signer.
type bindingFactors map[party.ID]*group.Scalar

// computeBindingFactors derives rho_j for every j in signers from the
// message and the full set of round-1 commitments, absorbed in ascending
// participant-id order so that every signer computes the same rho_j
// independently. signers is already sorted and deduplicated by
// construction (party.Set).
func computeBindingFactors(
	signers party.Set,
	message []byte,
	commitments map[party.ID]*wire.SigningCommitmentMessage,
) (bindingFactors, error) {
	factors := make(bindingFactors, len(signers))

	for _, j := range signers {
		tr := group.NewRhoTranscript()
		tr.AbsorbBytes(message)
		tr.AbsorbUint64(uint64(j))

		for _, k := range signers {
			c, ok := commitments[k]
			if !ok {
				return nil, &ferrors.InsufficientSigners{
					Have: uint16(len(commitments)),
					Need: uint16(len(signers)),
				}
			}
			tr.AbsorbUint64(uint64(k))
			tr.AbsorbPoint(c.D)
			tr.AbsorbPoint(c.E)
		}

		factors[j] = tr.Squeeze()
	}

	return factors, nil
}

// computeGroupCommitment computes R = sum_{j in signers} (D_j + rho_j*E_j).
func computeGroupCommitment(
	signers party.Set,
	commitments map[party.ID]*wire.SigningCommitmentMessage,
	rho bindingFactors,
) *group.Point {
	acc := group.Identity()
	for _, j := range signers {
		c := commitments[j]
		term := group.AddPoints(c.D, group.ScalarMul(rho[j], c.E))
		acc = group.AddPoints(acc, term)
	}
	return acc
}

// computeChallenge computes c = H_c(R, PK, m) via the challenge-labeled
// transcript.
func computeChallenge(r *group.Point, groupPublicKey *group.Point, message []byte) *group.Scalar {
	return group.NewChallengeTranscript().
		AbsorbPoint(r).
		AbsorbPoint(groupPublicKey).
		AbsorbBytes(message).
		Squeeze()
}

// verifyPartial checks zᵢ·G == Dᵢ + ρᵢ·Eᵢ + c·λᵢ,S·Yᵢ.
func verifyPartial(
	z *group.Scalar,
	d, e *group.Point,
	rho *group.Scalar,
	lambda *group.Scalar,
	challenge *group.Scalar,
	verificationShare *group.Point,
) bool {
	lhs := group.BaseMul(z)
	rhs := group.AddPoints(
		group.AddPoints(d, group.ScalarMul(rho, e)),
		group.ScalarMul(group.Mul(challenge, lambda), verificationShare),
	)
	return lhs.Equal(rhs)
}
