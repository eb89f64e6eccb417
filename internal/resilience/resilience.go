// Package resilience wraps calls to external providers with a timeout,
// retry with exponential backoff and a circuit breaker
package resilience

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/aethra/krishi/internal/errors"
	"github.com/avast/retry-go/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen indicates the circuit breaker is open
var ErrCircuitOpen = gobreaker.ErrOpenState

// Settings configure a Policy
type Settings struct {
	Name         string
	Timeout      time.Duration
	Attempts     uint
	InitialDelay time.Duration
	MaxFailures  uint32
	OpenFor      time.Duration
}

// Policy guards every call to one provider
type Policy struct {
	settings Settings
	breaker  *gobreaker.CircuitBreaker
	log      *zap.Logger
}

// NewPolicy creates a policy, filling unset settings with defaults
func NewPolicy(s Settings, log *zap.Logger) *Policy {
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.Attempts == 0 {
		s.Attempts = 3
	}
	if s.InitialDelay <= 0 {
		s.InitialDelay = 500 * time.Millisecond
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = time.Minute
	}
	log = log.Named("resilience").With(zap.String("provider", s.Name))

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			// client-side mistakes say nothing about provider health
			return err == nil || isPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Policy{settings: s, breaker: breaker, log: log}
}

// Name returns the provider name
func (p *Policy) Name() string {
	return p.settings.Name
}

// Do runs op with retries inside the circuit breaker. Errors marked with
// Permanent are returned at once.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	return retry.Do(
		func() error {
			_, err := p.breaker.Execute(func() (interface{}, error) {
				callCtx, cancel := context.WithTimeout(ctx, p.settings.Timeout)
				defer cancel()
				return nil, op(callCtx)
			})
			if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(p.settings.Attempts),
		retry.Delay(p.settings.InitialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return retry.IsRecoverable(err) && !isPermanent(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			p.log.Debug("retrying call", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe *permanentError
	return stderrors.As(err, &pe)
}

// StatusError is a non-2xx response from a provider
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// CheckStatus turns a provider status code into an error. 4xx responses
// other than 408 and 429 are permanent.
func CheckStatus(status int, body string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if len(body) > 500 {
		body = strings.ToValidUTF8(body[:500], "")
	}
	err := &StatusError{StatusCode: status, Body: body}
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests && status != http.StatusRequestTimeout {
		return Permanent(err)
	}
	return err
}

// Classify converts a failed provider call into an UpstreamError
func Classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	var appErr errors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	kind := errors.UpstreamUnavailable
	var statusErr *StatusError
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		kind = errors.UpstreamTimeout
	case stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests:
		kind = errors.UpstreamRateLimited
	case stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusGatewayTimeout:
		kind = errors.UpstreamTimeout
	case stderrors.As(err, &syntaxErr), stderrors.As(err, &typeErr), stderrors.Is(err, ErrMalformed):
		kind = errors.UpstreamMalformed
	}
	return errors.NewUpstreamError(provider, kind, err)
}

// ErrMalformed marks a provider response that could not be understood
var ErrMalformed = stderrors.New("malformed provider response")

// StatusOf returns the HTTP status to record for a finished call
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var statusErr *StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	if stderrors.Is(err, gobreaker.ErrOpenState) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}
