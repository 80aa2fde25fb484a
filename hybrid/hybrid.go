// Package hybrid routes a signing request between the online and offline
// signing paths: attempt a full threshold signing session combining the
// local share with one or more online remote shares; if that path is
// unavailable, fall back to a cached pre-issued session token covering
// the same capability; if neither is available, report
// ferrors.FallbackDenied. A degraded single-share signing path is a
// product-policy question, not a protocol one, and is deliberately not
// implemented here.
package hybrid

import (
	"time"

	"threshold.network/frost/ferrors"
	"threshold.network/frost/group"
	"threshold.network/frost/party"
	"threshold.network/frost/signing"
	"threshold.network/frost/token"
	"threshold.network/frost/wire"
)

// Dispatcher routes a signing request between the two online/offline
// paths. It holds no secret material itself: the
// threshold path's sessions are driven to Round2 by the caller's own
// shares (via signing.Session, constructed and Round1-committed before
// Sign is called), and the token path only reads from cache.
type Dispatcher struct {
	threshold          uint16
	groupPublicKey     *group.Point
	verificationShares map[party.ID]*group.Point
	cache              *token.Cache
}

// NewDispatcher builds a Dispatcher for one group, backed by cache for
// its token fallback path.
func NewDispatcher(
	threshold uint16,
	groupPublicKey *group.Point,
	verificationShares map[party.ID]*group.Point,
	cache *token.Cache,
) *Dispatcher {
	return &Dispatcher{
		threshold:          threshold,
		groupPublicKey:     groupPublicKey,
		verificationShares: verificationShares,
		cache:              cache,
	}
}

// Request describes one signing dispatch attempt. Sessions and
// Commitments together describe the full-threshold path: every entry in
// Sessions must already have completed FinalizeRound1 (the caller ran
// Round1 and exchanged commitments out of band, the way every other
// signing.Session consumer in this module does); an empty or
// below-threshold Sessions map means the full-threshold path is
// unavailable and Sign proceeds straight to the token fallback.
// Capability and Now describe the token fallback path.
type Request struct {
	Message     []byte
	Sessions    map[party.ID]*signing.Session
	Commitments map[party.ID]*wire.SigningCommitmentMessage
	Capability  token.Capability
	Now         time.Time
}

// Sign attempts the threshold path first, then the token fallback, in
// that fixed order. The returned bool
// reports whether the signature came from a fresh threshold session
// (true) or a cached token (false), so a caller that cares about
// freshness (e.g. for audit logging) does not have to re-derive it.
func (d *Dispatcher) Sign(req Request) (*signing.Signature, bool, error) {
	if sig, ok := d.tryThreshold(req); ok {
		return sig, true, nil
	}

	if d.cache != nil {
		if tok, err := d.cache.Consume(req.Capability, req.Now); err == nil {
			return tok.Signature, false, nil
		}
	}

	return nil, false, &ferrors.FallbackDenied{Reason: "no live threshold session and no cached token cover this request"}
}

// tryThreshold attempts the full-threshold path. It returns ok=false,
// not an error, whenever the path is simply unavailable (too few
// signers, or a genuine aggregation failure) so Sign can fall through to
// the token path uniformly; a caller that needs to know *why* the
// threshold path failed should drive signing.Coordinator.Aggregate
// directly instead of going through Dispatcher.
func (d *Dispatcher) tryThreshold(req Request) (*signing.Signature, bool) {
	if uint16(len(req.Sessions)) < d.threshold {
		return nil, false
	}

	signerIDs := make([]party.ID, 0, len(req.Sessions))
	for id := range req.Sessions {
		signerIDs = append(signerIDs, id)
	}
	signerSet, err := party.NewSet(signerIDs)
	if err != nil {
		return nil, false
	}

	partials := make(map[party.ID]*wire.SigningPartialMessage, len(req.Sessions))
	for id, session := range req.Sessions {
		msg, err := session.Round2()
		if err != nil {
			return nil, false
		}
		partials[id] = msg
	}

	coordinator := signing.NewCoordinator(signerSet, d.threshold, req.Message, d.groupPublicKey, d.verificationShares)
	sig, _, err := coordinator.Aggregate(req.Commitments, partials)
	if err != nil {
		return nil, false
	}

	for _, session := range req.Sessions {
		_ = session.MarkAggregated()
	}

	return sig, true
}
