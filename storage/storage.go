// Package storage defines the secure-storage capability the core consumes
// for persisting a participant's long-term key material between sessions.
// The sink itself is external: the bytes handed to Store are expected to be
// encrypted at rest by a key the core never sees (a PUF-derived device key),
// so this package only fixes the record encoding and the narrow interface,
// never a concrete backend.
package storage

import (
	"encoding/binary"

	"threshold.network/frost/dkg"
	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
)

// Sink is the externally-provided storage capability: opaque bytes in,
// opaque bytes out, keyed by a caller-chosen identifier. Implementations
// must not fail silently; a Load for an unknown key returns an error.
type Sink interface {
	Store(keyID string, data []byte) error
	Load(keyID string) ([]byte, error)
}

// recordVersion prefixes every stored share record, independent of the
// wire protocol's own version byte so the two can evolve separately.
const recordVersion byte = 0x01

// EncodeResult serializes a finalized key-generation result to its storage
// record: version, threshold, participant count, participant ids in
// ascending order, the group public key, the local secret share, and each
// participant's verification share in id order.
func EncodeResult(r *dkg.Result) []byte {
	out := make([]byte, 0, 1+2+2+2*len(r.Participants)+group.PointSize+group.ScalarSize+len(r.Participants)*group.PointSize)
	out = append(out, recordVersion)

	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], r.Threshold)
	out = append(out, tmp[:]...)
	binary.BigEndian.PutUint16(tmp[:], uint16(len(r.Participants)))
	out = append(out, tmp[:]...)

	for _, id := range r.Participants {
		binary.BigEndian.PutUint16(tmp[:], uint16(id))
		out = append(out, tmp[:]...)
	}

	out = r.GroupPublicKey.Encode(out)
	out = r.Share.Encode(out)
	for _, id := range r.Participants {
		out = r.VerificationShares[id].Encode(out)
	}
	return out
}

// DecodeResult parses a storage record back into a dkg.Result, re-checking
// every field the way a wire decoder would: canonical scalar and point
// encodings, no identity where a key is expected, and a participant set
// that still satisfies the threshold constraints.
func DecodeResult(data []byte) (*dkg.Result, error) {
	if len(data) < 1+2+2 {
		return nil, &ferrors.InvalidEncoding{Field: "record", Reason: "truncated"}
	}
	if data[0] != recordVersion {
		return nil, &ferrors.InvalidEncoding{Field: "record", Reason: "unsupported record version"}
	}
	threshold := binary.BigEndian.Uint16(data[1:3])
	count := binary.BigEndian.Uint16(data[3:5])
	rest := data[5:]

	if len(rest) != 2*int(count)+group.PointSize+group.ScalarSize+int(count)*group.PointSize {
		return nil, &ferrors.InvalidEncoding{Field: "record", Reason: "wrong length for participant count"}
	}

	ids := make([]party.ID, count)
	for i := range ids {
		ids[i] = party.ID(binary.BigEndian.Uint16(rest[2*i:]))
	}
	rest = rest[2*count:]

	participants, err := party.NewSet(ids)
	if err != nil {
		return nil, err
	}
	if threshold == 0 || int(threshold) > len(participants) {
		return nil, &ferrors.InvalidParameters{Reason: "stored threshold outside [1, len(participants)]"}
	}

	groupPublicKey, err := group.DecodePoint(rest[:group.PointSize], false)
	if err != nil {
		return nil, &ferrors.InvalidEncoding{Field: "group public key", Reason: err.Error()}
	}
	rest = rest[group.PointSize:]

	share, err := group.DecodeScalar(rest[:group.ScalarSize])
	if err != nil {
		return nil, &ferrors.InvalidEncoding{Field: "share", Reason: err.Error()}
	}
	rest = rest[group.ScalarSize:]

	verificationShares := make(map[party.ID]*group.Point, count)
	for _, id := range participants {
		y, err := group.DecodePoint(rest[:group.PointSize], false)
		if err != nil {
			return nil, &ferrors.InvalidEncoding{Field: "verification share", Reason: err.Error()}
		}
		verificationShares[id] = y
		rest = rest[group.PointSize:]
	}

	return &dkg.Result{
		Threshold:          threshold,
		Participants:       participants,
		GroupPublicKey:     groupPublicKey,
		Share:              share,
		VerificationShares: verificationShares,
	}, nil
}

// SaveResult encodes r and hands it to the sink under keyID.
func SaveResult(sink Sink, keyID string, r *dkg.Result) error {
	return sink.Store(keyID, EncodeResult(r))
}

// LoadResult fetches and decodes the record stored under keyID. After a
// share rotation the caller saves the refreshed result under the same
// keyID, replacing the record of the now-destroyed old share.
func LoadResult(sink Sink, keyID string) (*dkg.Result, error) {
	data, err := sink.Load(keyID)
	if err != nil {
		return nil, err
	}
	return DecodeResult(data)
}
