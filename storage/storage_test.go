package storage

import (
	"crypto/rand"
	"errors"
	"testing"

	"threshold.network/frost/dkg"
	"threshold.network/frost/group"
	"threshold.network/frost/internal/testutils"
	"threshold.network/frost/party"
	"threshold.network/frost/wire"
)

// mapSink is an in-memory Sink standing in for the external encrypted
// store.
type mapSink map[string][]byte

func (m mapSink) Store(keyID string, data []byte) error {
	m[keyID] = append([]byte(nil), data...)
	return nil
}

func (m mapSink) Load(keyID string) ([]byte, error) {
	data, ok := m[keyID]
	if !ok {
		return nil, errors.New("storage: no record for key")
	}
	return data, nil
}

func finalizedResult(t *testing.T) *dkg.Result {
	ids := []party.ID{1, 2, 3}
	set, err := party.NewSet(ids)
	if err != nil {
		t.Fatal(err)
	}

	ceremonies := make(map[party.ID]*dkg.Ceremony, len(ids))
	for _, id := range ids {
		c, err := dkg.NewCeremony(2, set, id, rand.Reader)
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

	result, err := ceremonies[1].Finalize()
	if err != nil {
		t.Fatal(err)
	}
	return result
}

func TestSaveThenLoadRoundtripsResult(t *testing.T) {
	original := finalizedResult(t)
	sink := mapSink{}

	if err := SaveResult(sink, "share-v1", original); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadResult(sink, "share-v1")
	if err != nil {
		t.Fatal(err)
	}

	testutils.AssertUintsEqual(t, "threshold", uint64(original.Threshold), uint64(loaded.Threshold))
	testutils.AssertUint16SlicesEqual(t, "participants", original.Participants, loaded.Participants)
	testutils.AssertBoolsEqual(t, "group public key", true, original.GroupPublicKey.Equal(loaded.GroupPublicKey))
	testutils.AssertBoolsEqual(t, "share", true, original.Share.Equal(loaded.Share))
	for _, id := range original.Participants {
		testutils.AssertBoolsEqual(
			t,
			"verification share",
			true,
			original.VerificationShares[id].Equal(loaded.VerificationShares[id]),
		)
	}
}

func TestLoadUnknownKeyFails(t *testing.T) {
	if _, err := LoadResult(mapSink{}, "missing"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestDecodeRejectsTamperedRecord(t *testing.T) {
	record := EncodeResult(finalizedResult(t))

	truncated := record[:len(record)-1]
	if _, err := DecodeResult(truncated); err == nil {
		t.Fatal("expected error for truncated record")
	}

	wrongVersion := append([]byte(nil), record...)
	wrongVersion[0] = 0x02
	if _, err := DecodeResult(wrongVersion); err == nil {
		t.Fatal("expected error for unsupported record version")
	}

	identityPK := append([]byte(nil), record...)
	pkOffset := 1 + 2 + 2 + 2*3
	copy(identityPK[pkOffset:pkOffset+group.PointSize], group.Identity().Bytes())
	if _, err := DecodeResult(identityPK); err == nil {
		t.Fatal("expected error for identity group public key")
	}
}
