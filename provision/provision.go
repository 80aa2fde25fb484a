// Package provision implements the derived-key mode wrapper: run the DKG
// once, then derive a unique non-threshold device key from the group
// secret without ever letting that secret escape a single call's stack
// frame. The device key is accompanied by a derivation proof — a single
// threshold Schnorr signature over the derivation's public parameters,
// produced by the same participants that hold the group's shares — so an
// external transparency log can attest that the key really was derived
// from this group's secret rather than fabricated by a single device.
package provision

import (
	"crypto/sha512"

	"golang.org/x/crypto/hkdf"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/signing"
	"threshold.network/frost/wire"
)

// kdfInfoLabel is the fixed label mixed into HKDF's info parameter,
// matching the transcript-role naming convention used for every other
// labeled derivation in this module (group.NewKDFTranscript's "kdf"
// role).
const kdfInfoLabel = "device-key"

// Share is one participant's contribution to a group-secret
// reconstruction: a (participant id, secret share) pair drawn from a
// single DKG result. The caller assembles at least threshold of these;
// provision never runs DKG itself.
type Share struct {
	ID    party.ID
	Value *group.Scalar
}

// DerivedKey is the output of a derived-key provisioning run: a
// non-threshold keypair for one device, tied to the group that produced
// it by a derivation proof suitable for transparency-log ingestion.
type DerivedKey struct {
	DeviceID []byte
	SK       *group.Scalar
	PK       *group.Point
	Version  uint32
	Proof    []*signing.Signature
}

// DeriveSK reconstructs the group secret from shares inside this
// function's stack frame, derives sk = HKDF-SHA-512(secret, "device-key"
// || deviceID || version) reduced mod q, and zeroizes the reconstructed
// secret and every input share before returning, success or failure. It
// performs no I/O and never returns the reconstructed group secret: only
// sk and pk leave this function.
func DeriveSK(participants party.Set, shares []Share, deviceID []byte, version uint32) (sk *group.Scalar, pk *group.Point, err error) {
	defer func() {
		for _, s := range shares {
			s.Value.Zeroize()
		}
	}()

	if uint16(len(shares)) < 1 {
		return nil, nil, &ferrors.InvalidParameters{Reason: "at least one share is required"}
	}

	shareSet := make([]party.ID, 0, len(shares))
	byID := make(map[party.ID]*group.Scalar, len(shares))
	for _, s := range shares {
		if !participants.Contains(s.ID) {
			return nil, nil, &ferrors.InvalidParameters{Reason: "share id not a member of the participant set"}
		}
		if _, dup := byID[s.ID]; dup {
			return nil, nil, &ferrors.InvalidParameters{Reason: "duplicate share id"}
		}
		byID[s.ID] = s.Value
		shareSet = append(shareSet, s.ID)
	}

	set, err := party.NewSet(shareSet)
	if err != nil {
		return nil, nil, err
	}

	secret := group.NewScalar()
	defer func() { secret.Zeroize() }()

	for _, id := range set {
		lambda, err := party.LagrangeCoefficient(id, set)
		if err != nil {
			return nil, nil, err
		}
		secret = group.Add(secret, group.Mul(lambda, byID[id]))
	}

	derivedSK, err := hkdfExpandScalar(secret, deviceID, version)
	if err != nil {
		return nil, nil, err
	}

	return derivedSK, group.BaseMul(derivedSK), nil
}

// hkdfExpandScalar derives sk via HKDF-SHA-512 over the reconstructed
// group secret and reduces the 64-byte expansion output mod q using the
// same wide-reduction path group.RandomScalar uses for fresh randomness:
// HKDF's expand step is itself a PRF, so reading its output through the
// io.Reader interface RandomScalar already expects is the natural way to
// plug a deterministic KDF into code written against a randomness
// source.
func hkdfExpandScalar(secret *group.Scalar, deviceID []byte, version uint32) (*group.Scalar, error) {
	info := make([]byte, 0, len(kdfInfoLabel)+len(deviceID)+4)
	info = append(info, []byte(kdfInfoLabel)...)
	info = append(info, deviceID...)
	info = append(info, byte(version), byte(version>>8), byte(version>>16), byte(version>>24))

	r := hkdf.New(sha512.New, secret.Bytes(), nil, info)
	sk, err := group.RandomScalar(r)
	if err != nil {
		return nil, &ferrors.RngFailure{Reason: err.Error()}
	}
	return sk, nil
}

// DeriveDeviceKey runs the full derived-key mode wrapper: it reconstructs
// sk/pk via DeriveSK, then drives each of signerSessions through Round2
// and aggregates their partials into the derivation proof — one threshold
// signature over message, under the group's own public key, attesting
// that this device key really was derived by this group. message is
// signed as given: DeriveDeviceKey does not itself build or check the
// DescriptorMessage(deviceID, pk, version) descriptor. signerSessions
// must already be past Round1 (each entry's FinalizeRound1 has been
// called against the full commitment set) so this function performs no
// network I/O of its own; it only calls Round2 and aggregates.
func DeriveDeviceKey(
	participants party.Set,
	shares []Share,
	deviceID []byte,
	version uint32,
	threshold uint16,
	groupPublicKey *group.Point,
	signerSessions map[party.ID]*signing.Session,
	signerCommitments map[party.ID]*wire.SigningCommitmentMessage,
	verificationShares map[party.ID]*group.Point,
	message []byte,
) (*DerivedKey, error) {
	sk, pk, err := DeriveSK(participants, shares, deviceID, version)
	if err != nil {
		return nil, err
	}

	if uint16(len(signerSessions)) < threshold {
		sk.Zeroize()
		return nil, &ferrors.InsufficientSigners{Have: uint16(len(signerSessions)), Need: threshold}
	}

	signerIDs := make([]party.ID, 0, len(signerSessions))
	for id := range signerSessions {
		signerIDs = append(signerIDs, id)
	}
	signerSet, err := party.NewSet(signerIDs)
	if err != nil {
		sk.Zeroize()
		return nil, err
	}

	partials := make(map[party.ID]*wire.SigningPartialMessage, len(signerSessions))
	for id, session := range signerSessions {
		msg, err := session.Round2()
		if err != nil {
			sk.Zeroize()
			return nil, err
		}
		partials[id] = msg
	}

	coordinator := signing.NewCoordinator(signerSet, threshold, message, groupPublicKey, verificationShares)
	sig, invalid, err := coordinator.Aggregate(signerCommitments, partials)
	if err != nil {
		sk.Zeroize()
		return nil, &ferrors.VerificationFailed{Reason: "derivation proof aggregation failed", Participant: firstOrZero(invalid)}
	}

	for _, session := range signerSessions {
		_ = session.MarkAggregated()
	}

	return &DerivedKey{
		DeviceID: append([]byte(nil), deviceID...),
		SK:       sk,
		PK:       pk,
		Version:  version,
		Proof:    []*signing.Signature{sig},
	}, nil
}

func firstOrZero(ids []party.ID) uint16 {
	if len(ids) == 0 {
		return 0
	}
	return uint16(ids[0])
}

// DescriptorMessage builds the deterministic, non-secret message the
// derivation proof signs: the device id, the derived public key, and the
// version, absorbed through the kdf-labeled transcript so a derivation
// proof can never be confused with any other signed payload in this
// module.
func DescriptorMessage(deviceID []byte, pk *group.Point, version uint32) []byte {
	tr := group.NewKDFTranscript().
		AbsorbBytes(deviceID).
		AbsorbPoint(pk).
		AbsorbUint64(uint64(version))
	return tr.Squeeze().Bytes()
}
