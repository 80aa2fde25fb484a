// Package signing implements the two-round FROST threshold signing
// protocol: each signer commits to a pair of fresh nonces, every signer
// derives the same binding factors and group commitment from the full
// set of commitments, and each signer's partial signature combines its
// nonces, binding factor, Lagrange coefficient, and long-term share. A
// Coordinator (any peer, not necessarily a signer) verifies and
// aggregates the partials into a standard Schnorr signature.
//
// Session is single-use and advances linearly through Idle ->
// Round1Committed -> Round2Ready -> Round2Signed -> Aggregated |
// Aborted; backward transitions and reuse after a terminal state are
// rejected with ferrors.ProtocolState. The nonces generated in Round1 are
// zeroized the moment Round2 produces the partial signature, and again
// unconditionally by Drop, so they are never reachable from any state
// after Round2Signed.
package signing

import (
	"io"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/wire"
)

type state int

const (
	stateIdle state = iota
	stateRound1Committed
	stateRound2Ready
	stateRound2Signed
	stateAggregated
	stateAborted
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateRound1Committed:
		return "Round1Committed"
	case stateRound2Ready:
		return "Round2Ready"
	case stateRound2Signed:
		return "Round2Signed"
	case stateAggregated:
		return "Aggregated"
	case stateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Session is one signer's local view of a signing round for a fixed
// (signer set, message) pair. Session identity is that pair; the caller
// is responsible for not running two concurrent sessions over the same
// pair.
type Session struct {
	self           party.ID
	signers        party.Set
	threshold      uint16
	message        []byte
	sessionID      wire.SessionID
	share          *group.Scalar
	groupPublicKey *group.Point
	rng            io.Reader

	state state

	hidingNonce  *group.Scalar
	bindingNonce *group.Scalar

	commitments map[party.ID]*wire.SigningCommitmentMessage

	rho       bindingFactors
	groupR    *group.Point
	challenge *group.Scalar
	lambda    *group.Scalar
}

// NewSession begins a signing session from self's point of view over the
// given signer set and message. threshold is the group's DKG threshold;
// signers must number at least threshold, or NewSession rejects the
// session before any nonce is drawn.
func NewSession(
	self party.ID,
	signers party.Set,
	threshold uint16,
	sessionID wire.SessionID,
	message []byte,
	share *group.Scalar,
	groupPublicKey *group.Point,
	rng io.Reader,
) (*Session, error) {
	if !signers.Contains(self) {
		return nil, &ferrors.InvalidParameters{Reason: "self is not a member of the signer set"}
	}
	if uint16(len(signers)) < threshold {
		return nil, &ferrors.InsufficientSigners{Have: uint16(len(signers)), Need: threshold}
	}

	return &Session{
		self:           self,
		signers:        signers,
		threshold:      threshold,
		message:        append([]byte(nil), message...),
		sessionID:      sessionID,
		share:          share,
		groupPublicKey: groupPublicKey,
		rng:            rng,
		state:          stateIdle,
		commitments:    make(map[party.ID]*wire.SigningCommitmentMessage, len(signers)),
	}, nil
}

// Round1 draws self's fresh hiding and binding nonces, computes their
// public commitments, and returns the broadcast message. Round1 may be
// called exactly once.
func (s *Session) Round1() (*wire.SigningCommitmentMessage, error) {
	if s.state != stateIdle {
		return nil, &ferrors.ProtocolState{Operation: "Round1", State: s.state.String()}
	}

	hiding, err := group.RandomScalar(s.rng)
	if err != nil {
		return nil, &ferrors.RngFailure{Reason: err.Error()}
	}
	binding, err := group.RandomScalar(s.rng)
	if err != nil {
		return nil, &ferrors.RngFailure{Reason: err.Error()}
	}

	s.hidingNonce = hiding
	s.bindingNonce = binding

	msg := &wire.SigningCommitmentMessage{
		SessionID: s.sessionID,
		SignerID:  s.self,
		D:         group.BaseMul(hiding),
		E:         group.BaseMul(binding),
	}
	s.commitments[s.self] = msg

	s.state = stateRound1Committed
	return msg, nil
}

// SubmitCommitment records a peer's round-1 broadcast. Exactly one
// commitment per signer is accepted.
func (s *Session) SubmitCommitment(msg *wire.SigningCommitmentMessage) error {
	if s.state != stateRound1Committed {
		return &ferrors.ProtocolState{Operation: "SubmitCommitment", State: s.state.String()}
	}
	if msg.SessionID != s.sessionID {
		return &ferrors.InvalidParameters{Reason: "commitment belongs to a different session"}
	}
	if !s.signers.Contains(msg.SignerID) {
		return &ferrors.InvalidParameters{Reason: "commitment from a non-signer"}
	}
	if _, exists := s.commitments[msg.SignerID]; exists {
		return &ferrors.InvalidParameters{Reason: "commitment already recorded for this signer"}
	}

	s.commitments[msg.SignerID] = msg
	return nil
}

// FinalizeRound1 checks that every signer's commitment has been
// collected, then computes the binding factors, group commitment, and
// challenge shared by every signer and self's Lagrange coefficient. A
// missing commitment aborts the session.
func (s *Session) FinalizeRound1() error {
	if s.state != stateRound1Committed {
		return &ferrors.ProtocolState{Operation: "FinalizeRound1", State: s.state.String()}
	}

	for _, id := range s.signers {
		if _, ok := s.commitments[id]; !ok {
			s.abort()
			return &ferrors.InsufficientSigners{Have: uint16(len(s.commitments)), Need: uint16(len(s.signers))}
		}
	}

	rho, err := computeBindingFactors(s.signers, s.message, s.commitments)
	if err != nil {
		s.abort()
		return err
	}

	lambda, err := party.LagrangeCoefficient(s.self, s.signers)
	if err != nil {
		s.abort()
		return err
	}

	s.rho = rho
	s.groupR = computeGroupCommitment(s.signers, s.commitments, rho)
	s.challenge = computeChallenge(s.groupR, s.groupPublicKey, s.message)
	s.lambda = lambda

	s.state = stateRound2Ready
	return nil
}

// Round2 computes self's partial signature zᵢ = dᵢ + ρᵢ·eᵢ + λᵢ,S·sᵢ·c
// and zeroizes the hiding and binding nonces before returning: they are
// not reachable from this Session again after this call.
func (s *Session) Round2() (*wire.SigningPartialMessage, error) {
	if s.state != stateRound2Ready {
		return nil, &ferrors.ProtocolState{Operation: "Round2", State: s.state.String()}
	}

	rhoSelf := s.rho[s.self]
	z := group.Add(
		s.hidingNonce,
		group.Add(
			group.Mul(rhoSelf, s.bindingNonce),
			group.Mul(s.lambda, group.Mul(s.share, s.challenge)),
		),
	)

	s.hidingNonce.Zeroize()
	s.bindingNonce.Zeroize()

	s.state = stateRound2Signed
	return &wire.SigningPartialMessage{
		SessionID: s.sessionID,
		SignerID:  s.self,
		Z:         z,
	}, nil
}

// MarkAggregated transitions a Round2Signed session to its terminal
// Aggregated state once the caller has successfully combined partials
// into a signature, preventing any further use of this Session.
func (s *Session) MarkAggregated() error {
	if s.state != stateRound2Signed {
		return &ferrors.ProtocolState{Operation: "MarkAggregated", State: s.state.String()}
	}
	s.state = stateAggregated
	return nil
}

func (s *Session) abort() {
	if s.hidingNonce != nil {
		s.hidingNonce.Zeroize()
	}
	if s.bindingNonce != nil {
		s.bindingNonce.Zeroize()
	}
	s.state = stateAborted
}

// Drop zeroizes any live secret nonces and marks the session terminal
// regardless of its current state, for cancellation or timeout handling.
func (s *Session) Drop() {
	if s.state == stateAggregated {
		return
	}
	s.abort()
}
