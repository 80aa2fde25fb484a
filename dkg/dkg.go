// Package dkg implements the Pedersen verifiable-secret-sharing
// distributed key generation ceremony: each participant deals a
// degree-(t-1) polynomial pair to every other participant, receivers
// verify each dealing against its broadcast commitment, and a
// successful ceremony yields a group public key, a long-term secret
// share, and the public verification share of every participant.
//
// A Ceremony is single-use: it runs Round1 -> Deal -> ReceiveShare (once
// per sender) -> Finalize, and a verification failure at any point aborts
// it permanently, naming the offending dealer. There is no repair path:
// an abort is terminal and must be retried as an entirely new ceremony,
// with fresh randomness, among the honest remainder.
package dkg

import (
	"io"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/polynomial"
	"threshold.network/frost/wire"
)

type state int

const (
	stateInit state = iota
	stateCommitted
	stateDealt
	stateFinalized
	stateAborted
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "Init"
	case stateCommitted:
		return "Committed"
	case stateDealt:
		return "Dealt"
	case stateFinalized:
		return "Finalized"
	case stateAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Ceremony is one participant's view of a single DKG run. It is not safe
// for concurrent use by multiple goroutines, and per the module's
// concurrency model it never performs I/O or suspends: every method
// either returns an outbound message, an error, or a finalization result.
type Ceremony struct {
	threshold    uint16
	participants party.Set
	self         party.ID
	rng          io.Reader

	state state

	f *polynomial.Polynomial
	g *polynomial.Polynomial

	ownFeldman  []*group.Point
	ownPedersen []*group.Point

	commitments map[party.ID]*wire.CommitmentMessage

	receivedF map[party.ID]*group.Scalar
	receivedG map[party.ID]*group.Scalar

	accused party.ID

	zeroConstant bool
}

// NewCeremony begins a new ceremony over participants with the given
// threshold, from self's point of view. rng supplies the randomness for
// self's polynomials; a fixed RNG stream yields reproducible outputs.
func NewCeremony(threshold uint16, participants party.Set, self party.ID, rng io.Reader) (*Ceremony, error) {
	return newCeremony(threshold, participants, self, rng, false)
}

// NewRefreshCeremony begins a share-refresh run: self's hiding polynomial
// f is constrained to f(0) = 0, so the dealt deltas sum to zero and the
// group public key is unchanged. It is otherwise a Ceremony and reuses
// Round1, SubmitCommitment, Deal, ReceiveShare and Finalize unchanged;
// SubmitCommitment additionally requires every peer's Feldman constant
// term to be the identity point, rejecting any submission that would
// shift the group key.
func NewRefreshCeremony(threshold uint16, participants party.Set, self party.ID, rng io.Reader) (*Ceremony, error) {
	return newCeremony(threshold, participants, self, rng, true)
}

func newCeremony(threshold uint16, participants party.Set, self party.ID, rng io.Reader, zeroConstant bool) (*Ceremony, error) {
	if threshold == 0 || int(threshold) > len(participants) {
		return nil, &ferrors.InvalidParameters{Reason: "threshold must be in [1, len(participants)]"}
	}
	if !participants.Contains(self) {
		return nil, &ferrors.InvalidParameters{Reason: "self is not a member of the participant set"}
	}

	return &Ceremony{
		threshold:    threshold,
		participants: participants,
		self:         self,
		rng:          rng,
		state:        stateInit,
		commitments:  make(map[party.ID]*wire.CommitmentMessage, len(participants)),
		receivedF:    make(map[party.ID]*group.Scalar, len(participants)),
		receivedG:    make(map[party.ID]*group.Scalar, len(participants)),
		zeroConstant: zeroConstant,
	}, nil
}

// Round1 samples self's hiding polynomial f and blinding polynomial g and
// returns the commitment broadcast for the rest of the group. Round1 may
// be called exactly once.
func (c *Ceremony) Round1() (*wire.CommitmentMessage, error) {
	if c.state != stateInit {
		return nil, &ferrors.ProtocolState{Operation: "Round1", State: c.state.String()}
	}

	secret := group.NewScalar()
	if !c.zeroConstant {
		var err error
		secret, err = group.RandomScalar(c.rng)
		if err != nil {
			return nil, &ferrors.RngFailure{Reason: err.Error()}
		}
	}
	blind, err := group.RandomScalar(c.rng)
	if err != nil {
		return nil, &ferrors.RngFailure{Reason: err.Error()}
	}

	f, err := polynomial.Generate(c.rng, c.threshold, secret)
	if err != nil {
		return nil, err
	}
	g, err := polynomial.Generate(c.rng, c.threshold, blind)
	if err != nil {
		return nil, err
	}

	pedersen, err := polynomial.PedersenCommit(f, g)
	if err != nil {
		return nil, err
	}

	c.f = f
	c.g = g
	c.ownFeldman = f.Commit()
	c.ownPedersen = pedersen.Points

	msg := &wire.CommitmentMessage{
		Type:     c.commitmentType(),
		SenderID: c.self,
		Feldman:  c.ownFeldman,
		Pedersen: c.ownPedersen,
	}
	c.commitments[c.self] = msg

	c.state = stateCommitted
	return msg, nil
}

// SubmitCommitment records a peer's broadcast commitment. Exactly one
// commitment per sender is accepted; a second submission from the same
// sender is rejected, mirroring the single-write-per-sender evidence log
// discipline used elsewhere in this kind of ceremony.
func (c *Ceremony) SubmitCommitment(msg *wire.CommitmentMessage) error {
	if c.state != stateCommitted && c.state != stateDealt {
		return &ferrors.ProtocolState{Operation: "SubmitCommitment", State: c.state.String()}
	}
	if !c.participants.Contains(msg.SenderID) {
		return &ferrors.InvalidParameters{Reason: "commitment from non-participant"}
	}
	if _, exists := c.commitments[msg.SenderID]; exists {
		return &ferrors.InvalidParameters{Reason: "commitment already recorded for this sender"}
	}
	if len(msg.Feldman) != int(c.threshold) || len(msg.Pedersen) != int(c.threshold) {
		return &ferrors.InvalidEncoding{Field: "commitment", Reason: "commitment vector length does not match threshold"}
	}
	if c.zeroConstant && !msg.Feldman[0].IsIdentity() {
		return &ferrors.VerificationFailed{Participant: uint16(msg.SenderID), Reason: "refresh commitment constant term is not the identity point"}
	}

	c.commitments[msg.SenderID] = msg
	return nil
}

// Deal returns the point-to-point dealing self owes every other
// participant: the evaluation of self's f and g at their id. Deal may be
// called exactly once, after Round1.
func (c *Ceremony) Deal() ([]*wire.ShareMessage, error) {
	if c.state != stateCommitted {
		return nil, &ferrors.ProtocolState{Operation: "Deal", State: c.state.String()}
	}

	messages := make([]*wire.ShareMessage, 0, len(c.participants)-1)
	for _, recipient := range c.participants {
		if recipient == c.self {
			continue
		}
		messages = append(messages, &wire.ShareMessage{
			Type:        c.shareType(),
			SenderID:    c.self,
			RecipientID: recipient,
			S:           c.f.EvaluateAt(recipient),
			T:           c.g.EvaluateAt(recipient),
		})
	}

	c.receivedF[c.self] = c.f.EvaluateAt(c.self)
	c.receivedG[c.self] = c.g.EvaluateAt(c.self)

	c.state = stateDealt
	return messages, nil
}

// ReceiveShare verifies a dealing addressed to self against the sender's
// previously-submitted commitment. A failed check aborts the ceremony
// permanently and names the sender in the returned VerificationFailed
// error; the caller is expected to surface this as the ceremony's
// accusation.
func (c *Ceremony) ReceiveShare(msg *wire.ShareMessage) error {
	if c.state != stateDealt {
		return &ferrors.ProtocolState{Operation: "ReceiveShare", State: c.state.String()}
	}
	if msg.RecipientID != c.self {
		return &ferrors.InvalidParameters{Reason: "share addressed to a different recipient"}
	}
	if _, exists := c.receivedF[msg.SenderID]; exists {
		return &ferrors.InvalidParameters{Reason: "share already recorded for this sender"}
	}

	commitment, ok := c.commitments[msg.SenderID]
	if !ok {
		return &ferrors.InvalidParameters{Reason: "no commitment recorded for sender"}
	}

	pedersen := &polynomial.PedersenCommitments{Points: commitment.Pedersen}
	if err := polynomial.VerifyShare(pedersen, c.self, msg.S, msg.T); err != nil {
		c.state = stateAborted
		c.accused = msg.SenderID
		return &ferrors.VerificationFailed{
			Participant: uint16(msg.SenderID),
			Reason:      "dealt share does not match the dealer's Pedersen commitment",
		}
	}

	c.receivedF[msg.SenderID] = msg.S
	c.receivedG[msg.SenderID] = msg.T
	return nil
}

// Aborted reports whether the ceremony terminated with an accusation, and
// if so, the accused participant.
func (c *Ceremony) Aborted() (party.ID, bool) {
	if c.state != stateAborted {
		return 0, false
	}
	return c.accused, true
}

// Result is the output of a successfully finalized ceremony.
type Result struct {
	Threshold          uint16
	Participants       party.Set
	GroupPublicKey     *group.Point
	Share              *group.Scalar
	VerificationShares map[party.ID]*group.Point
}

// Finalize checks that a commitment and a verified dealing have been
// recorded for every participant, then assembles the group public key,
// self's long-term secret share, and every participant's public
// verification share. It zeroizes self's transient polynomials and the
// dealt shares that do not belong to the finalized output before
// returning.
func (c *Ceremony) Finalize() (*Result, error) {
	if c.state != stateDealt {
		return nil, &ferrors.ProtocolState{Operation: "Finalize", State: c.state.String()}
	}

	for _, id := range c.participants {
		if _, ok := c.commitments[id]; !ok {
			return nil, &ferrors.InsufficientSigners{Have: uint16(len(c.commitments)), Need: uint16(len(c.participants))}
		}
		if _, ok := c.receivedF[id]; !ok {
			return nil, &ferrors.InsufficientSigners{Have: uint16(len(c.receivedF)), Need: uint16(len(c.participants))}
		}
	}

	share := group.NewScalar()
	for _, id := range c.participants {
		share = group.Add(share, c.receivedF[id])
	}

	groupPublicKey := group.Identity()
	for _, id := range c.participants {
		groupPublicKey = group.AddPoints(groupPublicKey, c.commitments[id].Feldman[0])
	}

	verificationShares := make(map[party.ID]*group.Point, len(c.participants))
	for _, j := range c.participants {
		y := group.Identity()
		for _, id := range c.participants {
			y = group.AddPoints(y, polynomial.EvaluateCommitmentVector(c.commitments[id].Feldman, j))
		}
		verificationShares[j] = y
	}

	c.zeroizeTransient()
	c.state = stateFinalized

	return &Result{
		Threshold:          c.threshold,
		Participants:       c.participants,
		GroupPublicKey:     groupPublicKey,
		Share:              share,
		VerificationShares: verificationShares,
	}, nil
}

func (c *Ceremony) commitmentType() byte {
	if c.zeroConstant {
		return wire.TypeRotationCommitment
	}
	return wire.TypeDKGCommitment
}

func (c *Ceremony) shareType() byte {
	if c.zeroConstant {
		return wire.TypeRotationShare
	}
	return wire.TypeDKGShare
}

func (c *Ceremony) zeroizeTransient() {
	if c.f != nil {
		c.f.Zeroize()
	}
	if c.g != nil {
		c.g.Zeroize()
	}
	for id, s := range c.receivedF {
		s.Zeroize()
		delete(c.receivedF, id)
	}
	for id, t := range c.receivedG {
		t.Zeroize()
		delete(c.receivedG, id)
	}
}

// Drop aborts and zeroizes the ceremony's secret material unconditionally
// regardless of its current state, for use by a caller tearing down a
// ceremony on cancellation or timeout.
func (c *Ceremony) Drop() {
	c.zeroizeTransient()
	if c.state != stateFinalized {
		c.state = stateAborted
	}
}
