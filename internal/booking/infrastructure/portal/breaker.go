package portal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
)

// response is a fully read portal response.
type response struct {
	status int
	header http.Header
	body   []byte
}

// serverError marks a 5xx response. It trips the breaker but the body is
// still returned to callers that accept any status.
type serverError struct {
	status int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("portal returned %d", e.status)
}

// BreakerConfig configures the portal circuit breaker.
type BreakerConfig struct {
	// Failures is the consecutive-failure count that opens the breaker.
	Failures int
	// Timeout is how long the breaker stays open before a half-open probe.
	Timeout time.Duration
}

func newBreaker(name string, config BreakerConfig, logger *slog.Logger, onState func(gobreaker.State)) *gobreaker.CircuitBreaker[*response] {
	failures := config.Failures
	if failures <= 0 {
		failures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("portal circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			onState(to)
		},
	}
	return gobreaker.NewCircuitBreaker[*response](settings)
}

// mapBreakerError turns breaker rejections into domain.ErrCircuitOpen.
func mapBreakerError(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", domain.ErrCircuitOpen, name)
	}
	return err
}
