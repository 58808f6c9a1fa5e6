// internal/browser/poll_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances simulated time instead of sleeping.
type fakeClock struct {
	elapsed time.Duration
	sleeps  int
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.elapsed += d
	c.sleeps++
	return nil
}

// scriptedText returns texts in order and repeats the last one.
type scriptedText struct {
	texts []string
	reads int
	err   error
}

func (s *scriptedText) Text(ctx context.Context, selector string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	i := s.reads
	if i >= len(s.texts) {
		i = len(s.texts) - 1
	}
	s.reads++
	return s.texts[i], nil
}

const sentinel = "No items to display"

func TestUntilTextChanges_TimesOutWithoutError(t *testing.T) {
	clock := &fakeClock{}
	page := &scriptedText{texts: []string{sentinel}}

	res, err := Poller{Sleep: clock.Sleep}.UntilTextChanges(context.Background(), page, "#status", sentinel, 3*time.Second, 40)
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, sentinel, res.Text)
	assert.Equal(t, 40, res.Attempts)
	assert.Equal(t, 40, page.reads)
	assert.Equal(t, 117*time.Second, clock.elapsed, "no wait after the last read")
}

func TestUntilTextChanges_ReturnsChangedText(t *testing.T) {
	clock := &fakeClock{}
	page := &scriptedText{texts: []string{sentinel, sentinel, "1 - 3 of 3 items"}}

	res, err := Poller{Sleep: clock.Sleep}.UntilTextChanges(context.Background(), page, "#status", sentinel, 3*time.Second, 40)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "1 - 3 of 3 items", res.Text)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 6*time.Second, clock.elapsed)
}

func TestUntilTextChanges_AlreadyChangedDoesNotWait(t *testing.T) {
	clock := &fakeClock{}
	page := &scriptedText{texts: []string{"1 - 3 of 3 items"}}

	res, err := Poller{Sleep: clock.Sleep}.UntilTextChanges(context.Background(), page, "#status", sentinel, 3*time.Second, 40)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, 1, res.Attempts)
	assert.Zero(t, clock.sleeps)
	assert.Zero(t, clock.elapsed)
}

func TestUntilTextChanges_ChangeOnLastAttemptIsNotTimeout(t *testing.T) {
	clock := &fakeClock{}
	page := &scriptedText{texts: []string{sentinel, sentinel, "done"}}

	res, err := Poller{Sleep: clock.Sleep}.UntilTextChanges(context.Background(), page, "#status", sentinel, time.Second, 3)
	require.NoError(t, err)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "done", res.Text)
}

func TestUntilTextChanges_PropagatesReadErrors(t *testing.T) {
	boom := errors.New("node detached")
	page := &scriptedText{err: boom}

	_, err := Poller{Sleep: (&fakeClock{}).Sleep}.UntilTextChanges(context.Background(), page, "#status", sentinel, time.Second, 5)
	assert.ErrorIs(t, err, boom)
}

func TestUntil_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	res, err := Poller{}.Until(ctx, 10*time.Millisecond, 1000, func(context.Context) (bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.TimedOut)
	assert.Equal(t, 2, calls)
}

func TestUntil_RejectsEmptyBudget(t *testing.T) {
	_, err := Poller{}.Until(context.Background(), time.Second, 0, func(context.Context) (bool, error) { return true, nil })
	assert.Error(t, err)
}

func TestRealSleep(t *testing.T) {
	start := time.Now()
	require.NoError(t, RealSleep(context.Background(), 5*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, RealSleep(ctx, time.Hour), context.Canceled)
}
