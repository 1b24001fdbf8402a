package commitment

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/lamassu-labs/trustwrapper-core/pkg/clock"
	twerrors "github.com/lamassu-labs/trustwrapper-core/pkg/errors"
	"github.com/lamassu-labs/trustwrapper-core/pkg/model"
	"github.com/lamassu-labs/trustwrapper-core/pkg/ruleset"
)

// Sink is the external system a sealed Commitment is handed off to —
// a ledger, a log, a notarization service. Submission failures are retried
// with backoff by Seal; a Sink that is unavailable for the whole retry
// budget does not fail verification, it only downgrades SinkStatus to
// LocalOnly.
type Sink interface {
	Submit(ctx context.Context, c model.Commitment) error
}

const (
	retryBase    = 50 * time.Millisecond
	retryMax     = 1 * time.Second
	retryAttempts = 5
)

// Seal computes the commitment for record, bound to a fresh nonce from
// entropy and a timestamp from clk, and attempts to
// hand it off to sink, retrying with exponential backoff. record.Commitment
// is ignored as input (it is the thing being computed) and record.Fingerprint,
// record.ResponseDigest, etc. are all included in the hashed form. prevHash
// is nil unless cfg.Commitment.Chain is set, in which case it is the
// previous record's RecordHash for this model_id, per the optional
// hash-chaining the ruleset can enable.
func Seal(ctx context.Context, cfg *ruleset.Config, clk clock.Clock, entropy clock.EntropySource, sink Sink, record model.VerificationRecord, prevHash *[32]byte) (model.Commitment, error) {
	canon, err := canonicalRecordBytes(record)
	if err != nil {
		return model.Commitment{}, twerrors.Wrap(err, twerrors.KindInternal, "hash verification record")
	}

	var nonce [16]byte
	if _, err := entropy.Read(nonce[:]); err != nil {
		return model.Commitment{}, twerrors.Wrap(err, twerrors.KindInternal, "read commitment nonce")
	}

	timestamp := uint64(clk.Now().Unix())
	var timestampBE [8]byte
	binary.BigEndian.PutUint64(timestampBE[:], timestamp)

	c := model.Commitment{
		RecordHash: HashConcat(canon, nonce[:], timestampBE[:]),
		Nonce:      nonce,
		Timestamp:  timestamp,
		SinkStatus: model.SinkLocalOnly,
	}
	if cfg.Commitment.Chain && prevHash != nil {
		ph := *prevHash
		c.PrevHash = &ph
	}

	if sink == nil {
		return c, nil
	}

	backoff := retryBase
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return c, nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > retryMax {
				backoff = retryMax
			}
		}

		if err := sink.Submit(ctx, c); err != nil {
			lastErr = err
			continue
		}

		c.SinkStatus = model.SinkSealed
		return c, nil
	}

	_ = lastErr // exhausted retries; the caller surfaces LocalOnly via c.SinkStatus, not an error
	return c, nil
}

// canonicalRecordBytes returns the canonical JSON encoding of the parts of
// record that are fixed before sealing: the fingerprint, response digest,
// ruleset version, and every pipeline output. The commitment itself (not yet
// known) and CreatedAt (set after sealing) are excluded. Seal feeds these
// bytes, plus the nonce and timestamp, into RecordHash so the commitment is
// bound to a specific nonce and moment rather than only to the record's
// content.
func canonicalRecordBytes(record model.VerificationRecord) ([]byte, error) {
	type hashable struct {
		RequestID      interface{} `json:"request_id"`
		Fingerprint    [32]byte    `json:"fingerprint"`
		ResponseDigest [32]byte    `json:"response_digest"`
		RulesetVersion string      `json:"ruleset_version"`
		Hallucinations interface{} `json:"hallucinations"`
		Validators     interface{} `json:"validators"`
		Consensus      interface{} `json:"consensus"`
		Explanation    interface{} `json:"explanation,omitempty"`
		Trust          interface{} `json:"trust"`
	}

	h := hashable{
		RequestID:      record.RequestID,
		Fingerprint:    record.Fingerprint,
		ResponseDigest: record.ResponseDigest,
		RulesetVersion: record.RulesetVersion,
		Hallucinations: record.Hallucinations,
		Validators:     record.Validators,
		Consensus:      record.Consensus,
		Explanation:    record.Explanation,
		Trust:          record.Trust,
	}
	return MarshalCanonical(h)
}

// DedupDigest hashes record's canonical content alone, excluding the nonce
// and timestamp a subsequent Seal call would bind to it. Two calls to Seal
// over an identical record produce the same DedupDigest regardless of when
// they ran, which is what admission-cache dedup compares against — the
// externally visible Commitment.RecordHash is not this value, since it must
// change with the nonce and timestamp to bind the commitment to a moment.
func DedupDigest(record model.VerificationRecord) ([32]byte, error) {
	canon, err := canonicalRecordBytes(record)
	if err != nil {
		return [32]byte{}, err
	}
	return HashBytes(canon), nil
}
