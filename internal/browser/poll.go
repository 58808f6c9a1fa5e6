// internal/browser/poll.go
package browser

import (
	"context"
	"errors"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RealSleep is the wall clock SleepFunc.
func RealSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poller runs bounded wait loops. The zero value uses the wall clock.
type Poller struct {
	Sleep SleepFunc
}

func (p Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return RealSleep(ctx, d)
}

// PollResult is the terminal state of a polling loop. TimedOut is a normal
// outcome, not an error.
type PollResult struct {
	Text     string
	TimedOut bool
	Attempts int
}

// Until evaluates cond up to maxAttempts times, waiting interval between
// evaluations. The first check runs immediately. It stops early when cond
// reports true. Errors from cond and context
// cancellation are returned as errors; exhausting the budget is not.
func (p Poller) Until(ctx context.Context, interval time.Duration, maxAttempts int, cond func(ctx context.Context) (bool, error)) (PollResult, error) {
	if maxAttempts <= 0 {
		return PollResult{}, errors.New("poll: maxAttempts must be positive")
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := p.sleep(ctx, interval); err != nil {
				return PollResult{Attempts: attempt - 1}, err
			}
		} else if err := ctx.Err(); err != nil {
			return PollResult{}, err
		}
		done, err := cond(ctx)
		if err != nil {
			return PollResult{Attempts: attempt}, err
		}
		if done {
			return PollResult{Attempts: attempt}, nil
		}
	}
	return PollResult{TimedOut: true, Attempts: maxAttempts}, nil
}

// TextReader is the part of Page the text poller needs.
type TextReader interface {
	Text(ctx context.Context, selector string) (string, error)
}

// UntilTextChanges polls selector's text until it differs from sentinel. When
// the text is still the sentinel after maxAttempts reads the result has
// TimedOut set and Text equal to the sentinel.
func (p Poller) UntilTextChanges(ctx context.Context, page TextReader, selector, sentinel string, interval time.Duration, maxAttempts int) (PollResult, error) {
	var last string
	res, err := p.Until(ctx, interval, maxAttempts, func(ctx context.Context) (bool, error) {
		text, err := page.Text(ctx, selector)
		if err != nil {
			return false, err
		}
		last = text
		return text != sentinel, nil
	})
	res.Text = last
	return res, err
}

// PollUntilTextChanges is UntilTextChanges on the wall clock.
func PollUntilTextChanges(ctx context.Context, page TextReader, selector, sentinel string, interval time.Duration, maxAttempts int) (PollResult, error) {
	return Poller{}.UntilTextChanges(ctx, page, selector, sentinel, interval, maxAttempts)
}
