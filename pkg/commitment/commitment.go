// Copyright 2025 TrustWrapper Authors
//
// Package commitment provides canonical JSON encoding and SHA-256 hashing
// shared by the fingerprint, history, and proof-commitment stages, plus the
// Seal operation that binds a VerificationRecord to a moment in time (C8).
package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalizeJSON takes arbitrary JSON bytes and returns a canonical
// encoding (sorted object keys, array order preserved). A simplified
// RFC8785-style approach: sufficient for deterministic hashing, not a
// general-purpose canonicalizer.
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	canonical := canonicalizeValue(v)
	return json.Marshal(canonical)
}

// canonicalizeValue recursively sorts map keys; arrays retain order.
func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// HashConcat returns the SHA-256 digest of concatenated byte slices.
func HashConcat(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashHex returns the hex-encoded SHA-256 digest of concatenated byte slices.
func HashHex(parts ...[]byte) string {
	sum := HashConcat(parts...)
	return hex.EncodeToString(sum[:])
}

// HashBytes returns the SHA-256 digest of data.
func HashBytes(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// MarshalCanonical marshals v to JSON and then canonicalizes it.
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// HashCanonical marshals v to canonical JSON and returns its SHA-256 digest.
func HashCanonical(v interface{}) ([32]byte, error) {
	canon, err := MarshalCanonical(v)
	if err != nil {
		return [32]byte{}, err
	}
	return HashBytes(canon), nil
}
