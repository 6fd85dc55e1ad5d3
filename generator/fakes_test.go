package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedLLM replays results in order and records every prompt.
type scriptedLLM struct {
	mu      sync.Mutex
	results []scripted
	prompts []Prompt
}

type scripted struct {
	out string
	err error
}

func (s *scriptedLLM) Complete(_ context.Context, p Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	if len(s.results) == 0 {
		return "", errors.New("script exhausted")
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.out, r.err
}

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// scriptedInvoker satisfies ModelInvoker without any retry behaviour.
type scriptedInvoker struct {
	scriptedLLM
}

func (s *scriptedInvoker) Invoke(ctx context.Context, p Prompt) (string, error) {
	return s.Complete(ctx, p)
}

func say(out ...string) []scripted {
	r := make([]scripted, len(out))
	for i, o := range out {
		r[i] = scripted{out: o}
	}
	return r
}

// recordSleeper captures backoff delays without waiting.
type recordSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func mustRequest(t *testing.T, dest string, additional []string, start, end string, prefs Preferences) TripRequest {
	t.Helper()
	s, err := time.Parse(dateLayout, start)
	require.NoError(t, err)
	e, err := time.Parse(dateLayout, end)
	require.NoError(t, err)
	req, err := NewTripRequest(dest, additional, s, e, prefs, nil)
	require.NoError(t, err)
	return req
}
