// Package wire encodes and decodes the protocol messages exchanged
// between participants: DKG commitments and point-to-point shares,
// signing commitments and partials, rotation messages (which mirror the
// DKG ones under different type tags), and the final aggregated
// signature. Every message is length-prefixed only by virtue of its
// fixed-width fields; there is no separate length header because every
// field either has a fixed size or, for commitment vectors, a size
// implied by the degree field carried earlier in the same message.
package wire

import (
	"encoding/binary"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
)

// Version is the single version byte prefixed to every message this
// package encodes.
const Version byte = 0x01

// Type tags, one per message kind.
const (
	TypeDKGCommitment      byte = 1
	TypeDKGShare           byte = 2
	TypeSigningCommitment  byte = 3
	TypeSigningPartial     byte = 4
	TypeRotationCommitment byte = 5
	TypeRotationShare      byte = 6
)

// SessionIDSize is the fixed width, in bytes, of a signing session
// identifier.
const SessionIDSize = 16

// SessionID identifies a signing session on the wire.
type SessionID [SessionIDSize]byte

func putUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func takeUint16(data []byte) (uint16, []byte, error) {
	if len(data) < 2 {
		return 0, nil, &ferrors.InvalidEncoding{Field: "uint16", Reason: "truncated"}
	}
	return binary.BigEndian.Uint16(data), data[2:], nil
}

func takeHeader(data []byte, wantType byte) ([]byte, error) {
	if len(data) < 2 {
		return nil, &ferrors.InvalidEncoding{Field: "header", Reason: "truncated"}
	}
	if data[0] != wantType {
		return nil, &ferrors.InvalidEncoding{Field: "type", Reason: "unexpected message type tag"}
	}
	if data[1] != Version {
		return nil, &ferrors.InvalidEncoding{Field: "version", Reason: "unsupported version byte"}
	}
	return data[2:], nil
}

func takePoint(data []byte, allowIdentity bool) (*group.Point, []byte, error) {
	if len(data) < group.PointSize {
		return nil, nil, &ferrors.InvalidEncoding{Field: "point", Reason: "truncated"}
	}
	p, err := group.DecodePoint(data[:group.PointSize], allowIdentity)
	if err != nil {
		return nil, nil, &ferrors.InvalidEncoding{Field: "point", Reason: err.Error()}
	}
	return p, data[group.PointSize:], nil
}

func takeScalar(data []byte) (*group.Scalar, []byte, error) {
	if len(data) < group.ScalarSize {
		return nil, nil, &ferrors.InvalidEncoding{Field: "scalar", Reason: "truncated"}
	}
	s, err := group.DecodeScalar(data[:group.ScalarSize])
	if err != nil {
		return nil, nil, &ferrors.InvalidEncoding{Field: "scalar", Reason: err.Error()}
	}
	return s, data[group.ScalarSize:], nil
}

// CommitmentMessage is the DKG (type 1) or rotation (type 5) commitment
// broadcast: sender_id ‖ t(2B) ‖ A_0 ‖ ... ‖ A_{t-1} ‖ C_0 ‖ ... ‖ C_{t-1}.
// Feldman carries the G-only commitment to the hiding polynomial
// (A_k = a_k*G), the component every participant needs to independently
// assemble the group public key and verification shares; Pedersen carries
// the combined commitment (C_k = a_k*G + b_k*H) against which a dealt
// share is actually checked. Publishing both is what lets the group
// public key be assembled from A alone while keeping share verification
// bound to the hiding Pedersen commitment.
type CommitmentMessage struct {
	Type     byte
	SenderID party.ID
	Feldman  []*group.Point
	Pedersen []*group.Point
}

// Encode serializes m to its wire form.
func (m *CommitmentMessage) Encode() []byte {
	out := make([]byte, 0, 2+2+2+2*len(m.Feldman)*group.PointSize)
	out = append(out, m.Type, Version)
	out = putUint16(out, uint16(m.SenderID))
	out = putUint16(out, uint16(len(m.Feldman)))
	for _, c := range m.Feldman {
		out = c.Encode(out)
	}
	for _, c := range m.Pedersen {
		out = c.Encode(out)
	}
	return out
}

// DecodeCommitmentMessage decodes a commitment message, checking that its
// type tag matches wantType (TypeDKGCommitment or TypeRotationCommitment).
// The identity is permitted in the commitment vectors in general (only
// the refresh ceremony's zero-constant check treats A_0's identity
// specially, and that check belongs to dkg.Ceremony.SubmitCommitment
// under dkg.NewRefreshCeremony, not to decoding).
func DecodeCommitmentMessage(data []byte, wantType byte) (*CommitmentMessage, error) {
	rest, err := takeHeader(data, wantType)
	if err != nil {
		return nil, err
	}

	senderID, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}

	t, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}

	feldman := make([]*group.Point, 0, t)
	for i := uint16(0); i < t; i++ {
		var p *group.Point
		p, rest, err = takePoint(rest, true)
		if err != nil {
			return nil, err
		}
		feldman = append(feldman, p)
	}

	pedersen := make([]*group.Point, 0, t)
	for i := uint16(0); i < t; i++ {
		var p *group.Point
		p, rest, err = takePoint(rest, true)
		if err != nil {
			return nil, err
		}
		pedersen = append(pedersen, p)
	}

	return &CommitmentMessage{
		Type:     wantType,
		SenderID: party.ID(senderID),
		Feldman:  feldman,
		Pedersen: pedersen,
	}, nil
}

// ShareMessage is the DKG (type 2) or rotation (type 6) point-to-point
// dealing: sender_id ‖ recipient_id ‖ s ‖ t.
type ShareMessage struct {
	Type        byte
	SenderID    party.ID
	RecipientID party.ID
	S           *group.Scalar
	T           *group.Scalar
}

// Encode serializes m to its wire form.
func (m *ShareMessage) Encode() []byte {
	out := make([]byte, 0, 2+2+2+2*group.ScalarSize)
	out = append(out, m.Type, Version)
	out = putUint16(out, uint16(m.SenderID))
	out = putUint16(out, uint16(m.RecipientID))
	out = m.S.Encode(out)
	out = m.T.Encode(out)
	return out
}

// DecodeShareMessage decodes a point-to-point dealing message.
func DecodeShareMessage(data []byte, wantType byte) (*ShareMessage, error) {
	rest, err := takeHeader(data, wantType)
	if err != nil {
		return nil, err
	}

	senderID, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}
	recipientID, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}
	s, rest, err := takeScalar(rest)
	if err != nil {
		return nil, err
	}
	tt, _, err := takeScalar(rest)
	if err != nil {
		return nil, err
	}

	return &ShareMessage{
		Type:        wantType,
		SenderID:    party.ID(senderID),
		RecipientID: party.ID(recipientID),
		S:           s,
		T:           tt,
	}, nil
}

// SigningCommitmentMessage is the type-3 broadcast: session_id(16B) ‖
// signer_id ‖ D ‖ E.
type SigningCommitmentMessage struct {
	SessionID SessionID
	SignerID  party.ID
	D         *group.Point
	E         *group.Point
}

// Encode serializes m to its wire form.
func (m *SigningCommitmentMessage) Encode() []byte {
	out := make([]byte, 0, 2+SessionIDSize+2+2*group.PointSize)
	out = append(out, TypeSigningCommitment, Version)
	out = append(out, m.SessionID[:]...)
	out = putUint16(out, uint16(m.SignerID))
	out = m.D.Encode(out)
	out = m.E.Encode(out)
	return out
}

// DecodeSigningCommitmentMessage decodes a signing-commitment broadcast.
func DecodeSigningCommitmentMessage(data []byte) (*SigningCommitmentMessage, error) {
	rest, err := takeHeader(data, TypeSigningCommitment)
	if err != nil {
		return nil, err
	}
	if len(rest) < SessionIDSize {
		return nil, &ferrors.InvalidEncoding{Field: "session_id", Reason: "truncated"}
	}
	var sid SessionID
	copy(sid[:], rest[:SessionIDSize])
	rest = rest[SessionIDSize:]

	signerID, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}
	d, rest, err := takePoint(rest, false)
	if err != nil {
		return nil, err
	}
	e, _, err := takePoint(rest, false)
	if err != nil {
		return nil, err
	}

	return &SigningCommitmentMessage{SessionID: sid, SignerID: party.ID(signerID), D: d, E: e}, nil
}

// SigningPartialMessage is the type-4 broadcast: session_id ‖ signer_id ‖ z.
type SigningPartialMessage struct {
	SessionID SessionID
	SignerID  party.ID
	Z         *group.Scalar
}

// Encode serializes m to its wire form.
func (m *SigningPartialMessage) Encode() []byte {
	out := make([]byte, 0, 2+SessionIDSize+2+group.ScalarSize)
	out = append(out, TypeSigningPartial, Version)
	out = append(out, m.SessionID[:]...)
	out = putUint16(out, uint16(m.SignerID))
	out = m.Z.Encode(out)
	return out
}

// DecodeSigningPartialMessage decodes a signing-partial broadcast.
func DecodeSigningPartialMessage(data []byte) (*SigningPartialMessage, error) {
	rest, err := takeHeader(data, TypeSigningPartial)
	if err != nil {
		return nil, err
	}
	if len(rest) < SessionIDSize {
		return nil, &ferrors.InvalidEncoding{Field: "session_id", Reason: "truncated"}
	}
	var sid SessionID
	copy(sid[:], rest[:SessionIDSize])
	rest = rest[SessionIDSize:]

	signerID, rest, err := takeUint16(rest)
	if err != nil {
		return nil, err
	}
	z, _, err := takeScalar(rest)
	if err != nil {
		return nil, err
	}

	return &SigningPartialMessage{SessionID: sid, SignerID: party.ID(signerID), Z: z}, nil
}

// SignatureSize is the fixed wire size of an aggregated signature: R(32)
// concatenated with z(32).
const SignatureSize = group.PointSize + group.ScalarSize

// EncodeSignature serializes an (R, z) Schnorr signature pair.
func EncodeSignature(r *group.Point, z *group.Scalar) []byte {
	out := make([]byte, 0, SignatureSize)
	out = r.Encode(out)
	out = z.Encode(out)
	return out
}

// DecodeSignature decodes a 64-byte signature into its (R, z) components.
func DecodeSignature(data []byte) (*group.Point, *group.Scalar, error) {
	if len(data) != SignatureSize {
		return nil, nil, &ferrors.InvalidEncoding{Field: "signature", Reason: "wrong length"}
	}
	r, err := group.DecodePoint(data[:group.PointSize], false)
	if err != nil {
		return nil, nil, &ferrors.InvalidEncoding{Field: "signature.R", Reason: err.Error()}
	}
	z, err := group.DecodeScalar(data[group.PointSize:])
	if err != nil {
		return nil, nil, &ferrors.InvalidEncoding{Field: "signature.z", Reason: err.Error()}
	}
	return r, z, nil
}
