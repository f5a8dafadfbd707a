package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/graaaaa/reconcile/internal/store"
)

var (
	// ErrFatal is returned when the webhook rejects a payload permanently.
	ErrFatal = errors.New("webhook rejected notification")
	// ErrGaveUp is returned when retries are exhausted.
	ErrGaveUp = errors.New("webhook retries exhausted")
)

// DefaultMaxAttempts bounds the sends per payload, including the first.
const DefaultMaxAttempts = 5

// Notifier posts run summaries, retrying transient failures.
type Notifier struct {
	sender      Sender
	backoff     *BackoffCalculator
	sleep       SleepFunc
	maxAttempts int
	notifyClean bool
	logger      *slog.Logger
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSleep sets the wait function (for testing).
func WithSleep(fn SleepFunc) NotifierOption {
	return func(n *Notifier) { n.sleep = fn }
}

// WithBackoff sets the backoff calculator.
func WithBackoff(b *BackoffCalculator) NotifierOption {
	return func(n *Notifier) { n.backoff = b }
}

// WithMaxAttempts sets how many times one payload is tried.
func WithMaxAttempts(attempts int) NotifierOption {
	return func(n *Notifier) {
		if attempts > 0 {
			n.maxAttempts = attempts
		}
	}
}

// WithNotifyOnCleanRuns also posts runs that left nothing for review.
func WithNotifyOnCleanRuns(enabled bool) NotifierOption {
	return func(n *Notifier) { n.notifyClean = enabled }
}

// WithNotifierLogger sets the logger.
func WithNotifierLogger(logger *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = logger }
}

// NewNotifier creates a Notifier that delivers through sender.
func NewNotifier(sender Sender, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:      sender,
		backoff:     NewBackoffCalculator(DefaultBackoffConfig),
		sleep:       DefaultSleep,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ShouldNotify reports whether run is worth posting.
func (n *Notifier) ShouldNotify(run store.Run) bool {
	return n.notifyClean || run.Summary.Unresolved > 0
}

// NotifyRun posts run unless it is clean and clean runs are not wanted.
// It returns (false, nil) when the run was skipped.
func (n *Notifier) NotifyRun(ctx context.Context, run store.Run) (bool, error) {
	if !n.ShouldNotify(run) {
		n.logger.Debug("clean run, notification skipped", "run_id", run.ID)
		return false, nil
	}

	for i, payload := range BuildPayloads(run) {
		if err := n.deliver(ctx, payload); err != nil {
			return false, fmt.Errorf("send payload %d: %w", i+1, err)
		}
	}
	n.logger.Info("run summary posted", "run_id", run.ID)
	return true, nil
}

// deliver sends one payload, backing off between retryable failures.
// A Retry-After hint from the server replaces the computed delay.
func (n *Notifier) deliver(ctx context.Context, payload DiscordPayload) error {
	for attempt := 0; ; attempt++ {
		result, retryAfter := n.sender.Send(ctx, payload)
		switch result {
		case SendOK:
			return nil
		case SendFatal:
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrFatal
		}

		if attempt+1 >= n.maxAttempts {
			return ErrGaveUp
		}

		delay := retryAfter
		if delay <= 0 {
			delay = n.backoff.Calculate(attempt)
		}
		n.logger.Warn("webhook send failed, backing off",
			"attempt", attempt+1,
			"delay", delay.Round(time.Millisecond),
		)
		if err := n.sleep(ctx, delay); err != nil {
			return err
		}
	}
}
