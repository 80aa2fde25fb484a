// Package rotation implements proactive share refresh: the participants
// jointly deal a set of zero-constant polynomials so that every long-term
// share moves to a fresh, unrelated value while the group public key
// stays fixed. A refresh reuses the dkg package's ceremony machinery
// wholesale (Round1, SubmitCommitment, Deal, ReceiveShare, Finalize) under
// dkg.NewRefreshCeremony, which additionally enforces that every
// participant's constant-term commitment is the identity point; this
// package layers the delta application, the old-share destruction, and
// the rotation proof published to the external transparency log on top.
package rotation

import (
	"encoding/binary"
	"io"

	"threshold.network/frost/dkg"
	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/wire"
)

// Ceremony is one participant's view of a single refresh run.
type Ceremony struct {
	inner        *dkg.Ceremony
	epoch        uint64
	participants party.Set

	oldShare              *group.Scalar
	groupPublicKey        *group.Point
	oldVerificationShares map[party.ID]*group.Point
}

// NewCeremony begins a refresh of self's existing long-term share. epoch
// identifies this refresh round and is bound into the eventual rotation
// proof so that proofs from different epochs can never be confused.
func NewCeremony(
	epoch uint64,
	threshold uint16,
	participants party.Set,
	self party.ID,
	share *group.Scalar,
	groupPublicKey *group.Point,
	verificationShares map[party.ID]*group.Point,
	rng io.Reader,
) (*Ceremony, error) {
	inner, err := dkg.NewRefreshCeremony(threshold, participants, self, rng)
	if err != nil {
		return nil, err
	}
	for _, id := range participants {
		if _, ok := verificationShares[id]; !ok {
			return nil, &ferrors.InvalidParameters{Reason: "missing prior verification share for participant"}
		}
	}

	return &Ceremony{
		inner:                 inner,
		epoch:                 epoch,
		participants:          participants,
		oldShare:              share,
		groupPublicKey:        groupPublicKey,
		oldVerificationShares: verificationShares,
	}, nil
}

// Round1 samples self's zero-constant delta polynomial pair and returns
// the commitment broadcast, exactly as dkg.Ceremony.Round1.
func (c *Ceremony) Round1() (*wire.CommitmentMessage, error) { return c.inner.Round1() }

// SubmitCommitment records a peer's delta commitment, rejecting one whose
// constant term is not the identity point.
func (c *Ceremony) SubmitCommitment(msg *wire.CommitmentMessage) error {
	return c.inner.SubmitCommitment(msg)
}

// Deal returns the point-to-point delta dealings self owes every peer.
func (c *Ceremony) Deal() ([]*wire.ShareMessage, error) { return c.inner.Deal() }

// ReceiveShare verifies a delta dealing addressed to self.
func (c *Ceremony) ReceiveShare(msg *wire.ShareMessage) error { return c.inner.ReceiveShare(msg) }

// Aborted reports whether the refresh terminated with an accusation.
func (c *Ceremony) Aborted() (party.ID, bool) { return c.inner.Aborted() }

// Result is the refreshed long-term key material for self. GroupPublicKey
// is unchanged from before the refresh.
type Result struct {
	GroupPublicKey     *group.Point
	Share              *group.Scalar
	VerificationShares map[party.ID]*group.Point
}

// Finalize combines the dealt deltas into self's new share and every
// participant's new verification share, destructively zeroizes the old
// share, and returns the refreshed key material. It fails closed if the
// deltas do not sum to zero, which would otherwise silently move the
// group public key.
func (c *Ceremony) Finalize() (*Result, error) {
	delta, err := c.inner.Finalize()
	if err != nil {
		return nil, err
	}
	if !delta.GroupPublicKey.IsIdentity() {
		return nil, &ferrors.VerificationFailed{Reason: "refresh deltas do not sum to zero; group public key would move"}
	}

	newShare := group.Add(c.oldShare, delta.Share)

	newVerificationShares := make(map[party.ID]*group.Point, len(c.participants))
	for _, id := range c.participants {
		newVerificationShares[id] = group.AddPoints(c.oldVerificationShares[id], delta.VerificationShares[id])
	}

	c.oldShare.Zeroize()

	return &Result{
		GroupPublicKey:     c.groupPublicKey,
		Share:              newShare,
		VerificationShares: newVerificationShares,
	}, nil
}

// Drop zeroizes the old share and any in-flight delta material regardless
// of the ceremony's current state.
func (c *Ceremony) Drop() {
	c.inner.Drop()
	if c.oldShare != nil {
		c.oldShare.Zeroize()
	}
}

// ProofMessage returns the deterministic descriptor bound to one refresh
// epoch: the epoch counter, the unchanged group public key, and the
// sorted participant set. The signing package signs this message under
// the unchanged group public key to produce the rotation proof published
// to the external transparency log.
func ProofMessage(epoch uint64, groupPublicKey *group.Point, participants party.Set) []byte {
	tr := group.NewRotationProofTranscript().
		AbsorbUint64(epoch).
		AbsorbPoint(groupPublicKey)
	for _, id := range participants {
		tr.AbsorbUint64(uint64(id))
	}
	return tr.Squeeze().Bytes()
}

// SessionIDForEpoch derives a deterministic signing session identifier
// from a refresh epoch, so every participant proving the same rotation
// independently arrives at the same signing session without an
// out-of-band exchange.
func SessionIDForEpoch(epoch uint64) wire.SessionID {
	var id wire.SessionID
	binary.BigEndian.PutUint64(id[:8], epoch)
	return id
}
