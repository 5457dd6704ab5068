package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"golang.org/x/sync/errgroup"
)

// ErrCrashed is returned when a loop gives up at the exception ceiling.
var ErrCrashed = errors.New("orchestrator crashed: exception ceiling exceeded")

const shutdownTimeout = 5 * time.Second

// loopRunner is the orchestrator surface the loop commands drive.
type loopRunner interface {
	Run(ctx context.Context) (application.Result, error)
	Status() application.Status
}

// statusReporter exposes the loop status for /healthz.
type statusReporter interface {
	Status() application.Status
}

// runLoop runs the orchestrator until it terminates. When addr is set a
// health server runs alongside it and stops with the loop.
func runLoop(ctx context.Context, out io.Writer, runner loopRunner, addr string, extra map[string]http.Handler) error {
	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	var result application.Result
	g.Go(func() error {
		defer stop()
		var err error
		result, err = runner.Run(loopCtx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	})

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           newHealthMux(runner, extra),
			ReadHeaderTimeout: shutdownTimeout,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-loopCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return reportResult(out, result)
}

func reportResult(out io.Writer, result application.Result) error {
	switch result.Phase {
	case domain.PhaseTerminatedSuccess:
		fmt.Fprintf(out, "finished after %d cycles\n", result.State.Cycles)
		return nil
	case domain.PhaseTerminatedCrashed:
		fmt.Fprintf(out, "crashed after %d exceptions: %s\n", result.State.AttemptCount, result.State.LastError)
		return ErrCrashed
	default:
		fmt.Fprintln(out, "stopped")
		return nil
	}
}

// newHealthMux serves /healthz from the loop status plus any extra handlers
// such as /readyz and /metrics.
func newHealthMux(status statusReporter, extra map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		current := status.Status()
		w.Header().Set("Content-Type", "application/json")
		if current.Phase == domain.PhaseTerminatedCrashed {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(current)
	})
	for pattern, handler := range extra {
		if handler != nil {
			mux.Handle(pattern, handler)
		}
	}
	return mux
}
