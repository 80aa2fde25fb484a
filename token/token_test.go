package token

import (
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"threshold.network/frost/dkg"
	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/internal/testutils"
	"threshold.network/frost/party"
	"threshold.network/frost/signing"
	"threshold.network/frost/wire"
)

type testGroup struct {
	threshold          uint16
	participants       party.Set
	groupPublicKey     *group.Point
	shares             map[party.ID]*group.Scalar
	verificationShares map[party.ID]*group.Point
}

func newTestGroup(t *testing.T, threshold uint16, ids []party.ID) *testGroup {
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

	shares := make(map[party.ID]*group.Scalar, len(ids))
	var verificationShares map[party.ID]*group.Point
	var groupPK *group.Point
	for id, c := range ceremonies {
		result, err := c.Finalize()
		if err != nil {
			t.Fatal(err)
		}
		shares[id] = result.Share
		verificationShares = result.VerificationShares
		groupPK = result.GroupPublicKey
	}

	return &testGroup{
		threshold:          threshold,
		participants:       set,
		groupPublicKey:     groupPK,
		shares:             shares,
		verificationShares: verificationShares,
	}
}

// signUnderGroup drives a complete threshold signing session over
// signerIDs and returns the resulting signature, matching the
// signing package's own test helper shape.
func (tg *testGroup) signUnderGroup(t *testing.T, signerIDs []party.ID, message []byte) *signing.Signature {
	signerSet, err := party.NewSet(signerIDs)
	if err != nil {
		t.Fatal(err)
	}

	var sessionID wire.SessionID
	copy(sessionID[:], []byte("token-test-sessio"))

	sessions := make(map[party.ID]*signing.Session, len(signerIDs))
	commitments := make(map[party.ID]*wire.SigningCommitmentMessage, len(signerIDs))
	for _, id := range signerIDs {
		s, err := signing.NewSession(id, signerSet, tg.threshold, sessionID, message, tg.shares[id], tg.groupPublicKey, rand.Reader)
		if err != nil {
			t.Fatal(err)
		}
		msg, err := s.Round1()
		if err != nil {
			t.Fatal(err)
		}
		sessions[id] = s
		commitments[id] = msg
	}

	for selfID, s := range sessions {
		for id, msg := range commitments {
			if id == selfID {
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

	coordinator := signing.NewCoordinator(signerSet, tg.threshold, message, tg.groupPublicKey, tg.verificationShares)
	sig, invalid, err := coordinator.Aggregate(commitments, partials)
	if err != nil {
		t.Fatalf("aggregation failed: %v (invalid=%v)", err, invalid)
	}
	return sig
}

func TestTokenIssueThenConsumeOnceSucceeds(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: DeviceUnlock}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	tok, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer)
	if err != nil {
		t.Fatal(err)
	}

	got, err := cache.Consume(cap, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	testutils.AssertBytesEqual(t, tok.Nonce[:], got.Nonce[:])
}

func TestTokenSecondConsumptionIsReplayed(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: DeviceUnlock}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	if _, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer); err != nil {
		t.Fatal(err)
	}

	if _, err := cache.Consume(cap, now.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	_, err := cache.Consume(cap, now.Add(2*time.Minute))
	var replayed *ferrors.TokenReplayed
	if !errors.As(err, &replayed) {
		t.Fatalf("expected TokenReplayed, got %v", err)
	}
}

func TestTokenExpiresAfterValidityWindow(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: DeviceUnlock}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	notAfter := now.Add(time.Minute)
	if _, err := cache.Issue(rand.Reader, cap, now, notAfter, signer); err != nil {
		t.Fatal(err)
	}

	_, err := cache.Consume(cap, notAfter.Add(time.Second))
	var expired *ferrors.TokenExpired
	if !errors.As(err, &expired) {
		t.Fatalf("expected TokenExpired, got %v", err)
	}
}

func TestExpiredTokenDoesNotShadowLaterValidToken(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: DeviceUnlock}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	shortLived, err := cache.Issue(rand.Reader, cap, now, now.Add(time.Minute), signer)
	if err != nil {
		t.Fatal(err)
	}
	longLived, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer)
	if err != nil {
		t.Fatal(err)
	}

	got, err := cache.Consume(cap, now.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("expected the still-valid token despite an earlier expired one (nonce %x): %v", shortLived.Nonce, err)
	}
	testutils.AssertBytesEqual(t, longLived.Nonce[:], got.Nonce[:])
}

func TestConsumedTokenDoesNotShadowLaterValidToken(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: DeviceUnlock}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	first, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer)
	if err != nil {
		t.Fatal(err)
	}

	got, err := cache.Consume(cap, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	testutils.AssertBytesEqual(t, first.Nonce[:], got.Nonce[:])

	got, err = cache.Consume(cap, now.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	testutils.AssertBytesEqual(t, second.Nonce[:], got.Nonce[:])
}

func TestTokenCapabilityMismatchWhenNoneCached(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	_, err := cache.Consume(Capability{Kind: DeviceUnlock}, time.Unix(1_700_000_000, 0))
	var mismatch *ferrors.CapabilityMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CapabilityMismatch, got %v", err)
	}
}

func TestTokenPaymentCapabilityMustMatchAmountAndCurrency(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, DefaultCacheSize)

	now := time.Unix(1_700_000_000, 0)
	cap := Capability{Kind: Payment, Amount: 500, Currency: "USD"}

	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	if _, err := cache.Issue(rand.Reader, cap, now, now.Add(DefaultValidity), signer); err != nil {
		t.Fatal(err)
	}

	_, err := cache.Consume(Capability{Kind: Payment, Amount: 5000, Currency: "USD"}, now.Add(time.Minute))
	var mismatch *ferrors.CapabilityMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected CapabilityMismatch for a larger payment amount, got %v", err)
	}

	got, err := cache.Consume(cap, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	testutils.AssertBoolsEqual(t, "matching payment capability consumed", true, got.Capability.Equal(cap))
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	tg := newTestGroup(t, 2, []party.ID{1, 2, 3})
	cache := NewCache(tg.groupPublicKey, 1)

	now := time.Unix(1_700_000_000, 0)
	signer := func(message []byte) (*signing.Signature, error) {
		return tg.signUnderGroup(t, []party.ID{1, 2}, message), nil
	}

	first, err := cache.Issue(rand.Reader, Capability{Kind: DeviceUnlock}, now, now.Add(DefaultValidity), signer)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Issue(rand.Reader, Capability{Kind: KeychainDecrypt}, now, now.Add(DefaultValidity), signer); err != nil {
		t.Fatal(err)
	}

	if len(cache.tokens) != 1 {
		t.Fatalf("expected cache to hold exactly 1 token, got %d", len(cache.tokens))
	}

	_, err = cache.Consume(Capability{Kind: DeviceUnlock}, now.Add(time.Minute))
	var mismatch *ferrors.CapabilityMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected the evicted device-unlock token (nonce %x) to be gone, got %v", first.Nonce, err)
	}
}
