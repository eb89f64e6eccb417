package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	apperrors "github.com/aethra/krishi/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPolicy() *Policy {
	return NewPolicy(Settings{
		Name:         "test",
		Timeout:      time.Second,
		Attempts:     3,
		InitialDelay: time.Millisecond,
		MaxFailures:  2,
		OpenFor:      time.Hour,
	}, zap.NewNop())
}

func TestPolicy_RetriesTransientErrors(t *testing.T) {
	p := testPolicy()
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_PermanentErrorsAreNotRetried(t *testing.T) {
	p := testPolicy()
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return CheckStatus(http.StatusUnauthorized, "bad key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestPolicy_BreakerOpens(t *testing.T) {
	p := testPolicy()
	failing := func(ctx context.Context) error { return errors.New("down") }

	_ = p.Do(context.Background(), failing)

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 0, calls)
	assert.Equal(t, http.StatusServiceUnavailable, StatusOf(err))
}

func TestClassify(t *testing.T) {
	var upstream *apperrors.UpstreamError

	err := Classify("openweather", &StatusError{StatusCode: http.StatusTooManyRequests})
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, apperrors.UpstreamRateLimited, upstream.Kind)

	err = Classify("gemini", context.DeadlineExceeded)
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, apperrors.UpstreamTimeout, upstream.Kind)

	err = Classify("openweather", ErrMalformed)
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, apperrors.UpstreamMalformed, upstream.Kind)

	err = Classify("twilio", errors.New("dial tcp: refused"))
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, apperrors.UpstreamUnavailable, upstream.Kind)

	assert.NoError(t, Classify("x", nil))
}
