package storage

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLSignerRoundTrip(t *testing.T) {
	signer := NewURLSigner("test-secret", time.Minute)

	signed := signer.Sign("/api/v1/reports", "job-123")
	require.True(t, strings.HasPrefix(signed, "/api/v1/reports/job-123/download?"))

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	query := parsed.Query()

	err = signer.Verify("job-123", query.Get("expires"), query.Get("signature"))
	assert.NoError(t, err)
}

func TestURLSignerRejectsTamperedJobID(t *testing.T) {
	signer := NewURLSigner("test-secret", time.Minute)

	signed := signer.Sign("/api/v1/reports", "job-123")
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	query := parsed.Query()

	err = signer.Verify("job-456", query.Get("expires"), query.Get("signature"))
	assert.Error(t, err)
}

func TestURLSignerRejectsExpired(t *testing.T) {
	signer := NewURLSigner("test-secret", -time.Minute)

	signed := signer.Sign("/api/v1/reports", "job-123")
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	query := parsed.Query()

	err = signer.Verify("job-123", query.Get("expires"), query.Get("signature"))
	assert.ErrorContains(t, err, "expired")
}

func TestURLSignerRejectsWrongSecret(t *testing.T) {
	signer := NewURLSigner("test-secret", time.Minute)
	other := NewURLSigner("other-secret", time.Minute)

	signed := signer.Sign("/api/v1/reports", "job-123")
	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	query := parsed.Query()

	err = other.Verify("job-123", query.Get("expires"), query.Get("signature"))
	assert.ErrorContains(t, err, "signature")
}
