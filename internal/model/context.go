package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// GlobalContextHash is the sentinel hash recorded when a request carries no
// context. It keeps context_hash NOT NULL so the translation uniqueness key
// works with a single index.
const GlobalContextHash = "__GLOBAL__"

// Context is an opaque, JSON-serializable mapping attached to a request.
// Two contexts are equal iff their canonical serializations are byte-equal.
type Context map[string]any

// Canonicalize returns the canonical JSON serialization and its SHA-256 hex
// digest. encoding/json emits map keys in sorted order at every nesting level,
// which is the canonical form here. A nil or empty context yields the sentinel
// hash and an empty serialization.
func (c Context) Canonicalize() (hash string, serialized string, err error) {
	if len(c) == 0 {
		return GlobalContextHash, "", nil
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return "", "", fmt.Errorf("serialize context: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), string(raw), nil
}

// ParseContext decodes a stored context_json column back into a Context.
func ParseContext(serialized string) (Context, error) {
	if serialized == "" {
		return nil, nil
	}
	var c Context
	if err := json.Unmarshal([]byte(serialized), &c); err != nil {
		return nil, fmt.Errorf("parse context: %w", err)
	}
	return c, nil
}
