package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamStatusError(t *testing.T) {
	for _, code := range []int{429, 500, 503, 504} {
		var transient *TransientUpstreamError
		assert.ErrorAs(t, UpstreamStatusError(code, errors.New("x")), &transient, "status %d", code)
	}
	for _, code := range []int{400, 401, 403, 404, 502} {
		var transient *TransientUpstreamError
		assert.False(t, errors.As(UpstreamStatusError(code, errors.New("x")), &transient), "status %d", code)
	}
}

func TestErrorClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&StepError{Step: StepReview, Err: context.Canceled}, "Canceled"},
		{&FatalUpstreamError{Err: &TransientUpstreamError{StatusCode: 429}}, "FatalUpstreamError"},
		{&TransientUpstreamError{StatusCode: 503}, "TransientUpstreamError"},
		{malformed(StepPlanning, "", "bad"), "MalformedResponseError"},
		{fmt.Errorf("%w: no destination", ErrInvalidRequest), "InvalidRequest"},
		{errors.New("boom"), "Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorClass(tt.err))
	}
}

func TestReportExhaustion(t *testing.T) {
	err := &StepError{Step: StepPlanning, Iteration: 1, Err: &FatalUpstreamError{
		Attempts:  5,
		Backoff:   400 * time.Second,
		Exhausted: true,
		Err:       UpstreamStatusError(429, errors.New("rate limited")),
	}}
	got := Report(err)
	assert.Contains(t, got, "step: planning (iteration 1)")
	assert.Contains(t, got, "error class: FatalUpstreamError")
	assert.Contains(t, got, "attempts: 5")
	assert.Contains(t, got, "backoff elapsed: 6m40s")
	assert.Empty(t, Report(nil))
}

func TestReportResearchHasNoIteration(t *testing.T) {
	got := Report(&StepError{Step: StepResearch, Err: &FatalUpstreamError{Attempts: 1, Err: errors.New("401")}})
	assert.Contains(t, got, "step: research\n")
	assert.NotContains(t, got, "attempts:")
}

func TestOpenAILLMMapsStatus(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusTooManyRequests)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`)
	}))
	defer srv.Close()

	llm, err := NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	_, err = llm.Complete(context.Background(), Prompt{System: "s", User: "u"})
	var transient *TransientUpstreamError
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 429, transient.StatusCode)

	status.Store(http.StatusUnauthorized)
	_, err = llm.Complete(context.Background(), Prompt{User: "u"})
	require.Error(t, err)
	assert.False(t, errors.As(err, &transient))

	status.Store(http.StatusOK)
	out, err := llm.Complete(context.Background(), Prompt{User: "u", History: []Message{{Role: "assistant", Content: "prev"}}})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestNewOpenAILLMFromConfigValidates(t *testing.T) {
	_, err := NewOpenAILLMFromConfig(nil)
	require.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{Model: "m"})
	require.Error(t, err)
	_, err = NewOpenAILLMFromConfig(&LLMSettings{APIKey: "k"})
	require.Error(t, err)
}
