package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubRejectsEmptyToken(t *testing.T) {
	s := NewStub("ta-")
	_, err := s.Validate("", "1.0")
	require.Error(t, err)
	var reject *RejectError
	assert.ErrorAs(t, err, &reject)
}

func TestStubIsDeterministic(t *testing.T) {
	s := NewStub("ta-")
	a, err := s.Validate("my-token", "1.0")
	require.NoError(t, err)
	b, err := s.Validate("my-token", "1.0")
	require.NoError(t, err)
	assert.Equal(t, a.SessionID, b.SessionID)
	assert.Contains(t, a.SessionID, "ta-")
}

func TestStubDistinguishesTokens(t *testing.T) {
	s := NewStub("ta-")
	a, _ := s.Validate("token-a", "1.0")
	b, _ := s.Validate("token-b", "1.0")
	assert.NotEqual(t, a.SessionID, b.SessionID)
}
