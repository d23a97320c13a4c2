package webhook

import (
	"log/slog"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func newTestVerifier(t *testing.T, secret string, now time.Time) *Verifier {
	t.Helper()

	verifier := NewVerifier(secret, testLogger())
	verifier.now = func() time.Time { return now }

	return verifier
}

func TestVerifier_ValidSignature(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{"event_type":"file_created"}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := verifier.Sign(body, timestamp)

	err := verifier.Verify(body, signature, timestamp)
	require.NoError(t, err)
}

func TestVerifier_SignatureWithoutPrefix(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{"event_type":"file_created"}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := verifier.Sign(body, timestamp)

	err := verifier.Verify(body, signature[len("sha256="):], timestamp)
	require.NoError(t, err)
}

func TestVerifier_InvalidSignature(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{"event_type":"file_created"}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	err := verifier.Verify(body, "sha256=deadbeef", timestamp)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.True(t, IsAuthError(err))
}

func TestVerifier_TamperedBody(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{"event_type":"file_created"}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)
	signature := verifier.Sign(body, timestamp)

	err := verifier.Verify([]byte(`{"event_type":"file_deleted"}`), signature, timestamp)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_WrongSecret(t *testing.T) {
	now := time.Now()
	signer := newTestVerifier(t, "right-secret", now)
	verifier := newTestVerifier(t, "wrong-secret", now)

	body := []byte(`{}`)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	err := verifier.Verify(body, signer.Sign(body, timestamp), timestamp)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifier_StaleTimestamp(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{"event_type":"file_created"}`)
	stale := strconv.FormatInt(now.Add(-301*time.Second).Unix(), 10)
	signature := verifier.Sign(body, stale)

	err := verifier.Verify(body, signature, stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
	assert.True(t, IsAuthError(err))
}

func TestVerifier_FutureTimestampOutsideWindow(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{}`)
	future := strconv.FormatInt(now.Add(10*time.Minute).Unix(), 10)
	signature := verifier.Sign(body, future)

	err := verifier.Verify(body, signature, future)
	assert.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerifier_TimestampInsideWindow(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)

	body := []byte(`{}`)
	recent := strconv.FormatInt(now.Add(-299*time.Second).Unix(), 10)
	signature := verifier.Sign(body, recent)

	err := verifier.Verify(body, signature, recent)
	assert.NoError(t, err)
}

func TestVerifier_MissingHeaders(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	err := verifier.Verify([]byte(`{}`), "", timestamp)
	assert.ErrorIs(t, err, ErrMissingSignature)

	err = verifier.Verify([]byte(`{}`), "sha256=ab", "")
	assert.ErrorIs(t, err, ErrMissingTimestamp)
}

func TestVerifier_MalformedTimestamp(t *testing.T) {
	verifier := newTestVerifier(t, "test-secret", time.Now())

	err := verifier.Verify([]byte(`{}`), "sha256=ab", "not-a-number")
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestVerifier_MalformedSignatureHex(t *testing.T) {
	now := time.Now()
	verifier := newTestVerifier(t, "test-secret", now)
	timestamp := strconv.FormatInt(now.Unix(), 10)

	err := verifier.Verify([]byte(`{}`), "sha256=not-hex!", timestamp)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
