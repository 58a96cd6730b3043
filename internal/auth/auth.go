// Package auth validates opaque connection tokens and mints session
// identifiers. The production strategy is pluggable; this package
// ships the stub variant spec.md calls for.
package auth

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Result is what a successful Validate call returns.
type Result struct {
	SessionID string
}

// RejectError is returned by Validate when a token is refused. Callers
// surface Reason in AuthResponse.Reason.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return fmt.Sprintf("auth: rejected: %s", e.Reason) }

// Provider validates a client's token and client version, returning a
// session id on success. Implementations run synchronously — no
// blocking network calls — since the connection worker calls Validate
// inline while decoding an AuthRequest.
type Provider interface {
	Validate(token, clientVersion string) (Result, error)
}

// Stub accepts any non-empty token and derives a deterministic session
// id from it, so the same token always maps to the same session id
// within a process's lifetime. It performs no real credential check
// and must not be used where real authentication is required.
type Stub struct {
	Prefix string
}

// NewStub builds a Stub provider with the given session-id prefix.
func NewStub(prefix string) *Stub {
	return &Stub{Prefix: prefix}
}

// Validate implements Provider.
func (s *Stub) Validate(token, clientVersion string) (Result, error) {
	if token == "" {
		return Result{}, &RejectError{Reason: "empty token"}
	}
	sum := blake2b.Sum256([]byte(token))
	return Result{SessionID: s.Prefix + hex.EncodeToString(sum[:])[:16]}, nil
}
