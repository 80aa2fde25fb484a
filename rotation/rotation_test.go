package rotation

import (
	"crypto/rand"
	"testing"

	"threshold.network/frost/dkg"
	"threshold.network/frost/group"
	"threshold.network/frost/internal/testutils"
	"threshold.network/frost/party"
	"threshold.network/frost/signing"
	"threshold.network/frost/wire"
)

func runDKG(t *testing.T, threshold uint16, ids []party.ID) map[party.ID]*dkg.Result {
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	ceremonies := make(map[party.ID]*dkg.Ceremony, len(ids))
	for _, id := range ids {
		c, err := dkg.NewCeremony(threshold, set, id, rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		ceremonies[id] = c
	}

	commitments := make(map[party.ID]*wire.CommitmentMessage, len(ids))
	for id, c := range ceremonies {
		msg, err := c.Round1()
		if err != nil {
			t.Fatal(err)
		}
		commitments[id] = msg
	}

	for recipientID, recipient := range ceremonies {
		for senderID, msg := range commitments {
			if senderID == recipientID {
				continue
			}
			if err := recipient.SubmitCommitment(msg); err != nil {
				t.Fatal(err)
			}
		}
	}

	dealt := make(map[party.ID][]*wire.ShareMessage, len(ids))
	for id, c := range ceremonies {
		msgs, err := c.Deal()
		if err != nil {
			t.Fatal(err)
		}
		dealt[id] = msgs
	}

	for _, shares := range dealt {
		for _, msg := range shares {
			if err := ceremonies[msg.RecipientID].ReceiveShare(msg); err != nil {
				t.Fatal(err)
			}
		}
	}

	results := make(map[party.ID]*dkg.Result, len(ids))
	for id, c := range ceremonies {
		result, err := c.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		results[id] = result
	}
	return results
}

func runRotation(
	t *testing.T,
	threshold uint16,
	participants party.Set,
	epoch uint64,
	results map[party.ID]*dkg.Result,
) map[party.ID]*Result {
	ceremonies := make(map[party.ID]*Ceremony, len(participants))
	for _, id := range participants {
		r := results[id]
		c, err := NewCeremony(epoch, threshold, participants, id, r.Share, r.GroupPublicKey, r.VerificationShares, rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		ceremonies[id] = c
	}

	commitments := make(map[party.ID]*wire.CommitmentMessage, len(participants))
	for id, c := range ceremonies {
		msg, err := c.Round1()
		if err != nil {
			t.Fatal(err)
		}
		commitments[id] = msg
	}

	for recipientID, recipient := range ceremonies {
		for senderID, msg := range commitments {
			if senderID == recipientID {
				continue
			}
			if err := recipient.SubmitCommitment(msg); err != nil {
				t.Fatal(err)
			}
		}
	}

	dealt := make(map[party.ID][]*wire.ShareMessage, len(participants))
	for id, c := range ceremonies {
		msgs, err := c.Deal()
		if err != nil {
			t.Fatal(err)
		}
		dealt[id] = msgs
	}

	for _, shares := range dealt {
		for _, msg := range shares {
			if err := ceremonies[msg.RecipientID].ReceiveShare(msg); err != nil {
				t.Fatal(err)
			}
		}
	}

	refreshed := make(map[party.ID]*Result, len(participants))
	for id, c := range ceremonies {
		result, err := c.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		refreshed[id] = result
	}
	return refreshed
}

func TestRotationPreservesGroupPublicKey(t *testing.T) {
	ids := []party.ID{1, 2, 3}
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	results := runDKG(t, 2, ids)
	originalPK := results[1].GroupPublicKey

	// Finalize zeroizes the share each ceremony was given, so keep copies
	// of the old shares to compare against.
	oldShares := make(map[party.ID]*group.Scalar, len(ids))
	for _, id := range ids {
		oldShares[id] = results[id].Share.Clone()
	}

	refreshed := runRotation(t, 2, set, 1, results)

	for _, id := range ids {
		testutils.AssertBoolsEqual(t, "group public key unchanged", true, originalPK.Equal(refreshed[id].GroupPublicKey))
		testutils.AssertBoolsEqual(t, "new share differs from old", false, refreshed[id].Share.Equal(oldShares[id]))
		testutils.AssertBoolsEqual(
			t,
			"new verification share matches new share*G",
			true,
			group.BaseMul(refreshed[id].Share).Equal(refreshed[id].VerificationShares[id]),
		)
	}
}

func TestSignatureValidAfterRotation(t *testing.T) {
	ids := []party.ID{1, 2, 3}
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	results := runDKG(t, 2, ids)
	refreshed := runRotation(t, 2, set, 7, results)

	signerIDs := []party.ID{1, 3}
	signerSet, err := party.NewSet(signerIDs)
	if err != nil {
		t.Fatal(err)
	}
	message := []byte("hello2")

	var sessionID wire.SessionID
	copy(sessionID[:], []byte("rotation-sessio1"))

	sessions := make(map[party.ID]*signing.Session, len(signerIDs))
	for _, id := range signerIDs {
		s, err := signing.NewSession(id, signerSet, 2, sessionID, message, refreshed[id].Share, refreshed[id].GroupPublicKey, rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		sessions[id] = s
	}

	commitments := make(map[party.ID]*wire.SigningCommitmentMessage, len(signerIDs))
	for id, s := range sessions {
		msg, err := s.Round1()
		if err != nil {
			t.Fatal(err)
		}
		commitments[id] = msg
	}

	for id, s := range sessions {
		for otherID, msg := range commitments {
			if otherID == id {
				continue
			}
			if err := s.SubmitCommitment(msg); err != nil {
				t.Fatal(err)
			}
		}
		if err := s.FinalizeRound1(); err != nil {
			t.Fatal(err)
		}
	}

	partials := make(map[party.ID]*wire.SigningPartialMessage, len(signerIDs))
	for id, s := range sessions {
		msg, err := s.Round2()
		if err != nil {
			t.Fatal(err)
		}
		partials[id] = msg
	}

	coordinator := signing.NewCoordinator(signerSet, 2, message, refreshed[1].GroupPublicKey, refreshed[1].VerificationShares)
	sig, invalid, err := coordinator.Aggregate(commitments, partials)
	if err != nil {
		t.Fatalf("aggregation failed: %v (invalid=%v)", err, invalid)
	}

	testutils.AssertBoolsEqual(t, "signature verifies under preserved PK", true, signing.Verify(refreshed[1].GroupPublicKey, message, sig))
}

func TestRefreshRejectsNonIdentityConstantTerm(t *testing.T) {
	ids := []party.ID{1, 2, 3}
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	results := runDKG(t, 2, ids)

	c1, err := NewCeremony(3, 2, set, 1, results[1].Share, results[1].GroupPublicKey, results[1].VerificationShares, rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c1.Round1(); err != nil {
		t.Fatal(err)
	}

	forged := &wire.CommitmentMessage{
		Type:     wire.TypeRotationCommitment,
		SenderID: 2,
		Feldman:  append([]*group.Point{group.BaseMul(group.ScalarFromUint64(1))}, results[2].VerificationShares[2]),
		Pedersen: []*group.Point{group.Identity(), group.Identity()},
	}
	if err := c1.SubmitCommitment(forged); err == nil {
		t.Fatal("expected rejection of non-identity constant term in refresh commitment")
	}
}

func TestProofMessageDeterministicAcrossParticipants(t *testing.T) {
	ids := []party.ID{1, 2, 3}
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	pk := group.BaseMul(group.ScalarFromUint64(42))
	m1 := ProofMessage(9, pk, set)
	m2 := ProofMessage(9, pk, set)
	testutils.AssertBytesEqual(t, m1, m2)

	m3 := ProofMessage(10, pk, set)
	if string(m1) == string(m3) {
		t.Fatal("expected different epochs to produce different proof messages")
	}
}
