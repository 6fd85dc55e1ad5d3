package generator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMock(t *testing.T, llm *MockLLM, req TripRequest) Outcome {
	t.Helper()
	inv, err := NewInvoker(llm, DefaultRetryPolicy())
	require.NoError(t, err)
	a := newTestAgent(t, inv, AgentOptions{RepairAttempts: 1})
	s, err := NewSession("mock", req, a, SessionConfig{MaxIterations: 3, Threshold: a.Threshold(), Logger: quietLogger()})
	require.NoError(t, err)
	out, err := s.Run(context.Background())
	require.NoError(t, err)
	return out
}

func TestMockLLMRepeatsTheSameLoopForEveryRun(t *testing.T) {
	llm := &MockLLM{}
	req := mustRequest(t, "Tokyo", []string{"Kyoto"}, "2025-04-01", "2025-04-04", Preferences{Interests: []string{"food"}})

	for range 3 {
		out := runMock(t, llm, req)
		assert.True(t, out.Approved)
		assert.Equal(t, 2, out.Iterations)
		assert.Equal(t, 6.5, out.History[0].Review.Dimensions[CategoryTiming])
	}
}

func TestMockLLMKeepsConcurrentTripsApart(t *testing.T) {
	llm := &MockLLM{}
	reqs := []TripRequest{
		mustRequest(t, "Tokyo", nil, "2025-04-01", "2025-04-03", Preferences{}),
		mustRequest(t, "Lisbon", nil, "2025-06-10", "2025-06-12", Preferences{}),
		mustRequest(t, "Lima", nil, "2025-09-01", "2025-09-02", Preferences{}),
	}
	outs := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, _ := NewInvoker(llm, DefaultRetryPolicy())
			a, _ := NewAgent(inv, AgentOptions{Logger: quietLogger()})
			s, _ := NewSession("mock", req, a, SessionConfig{MaxIterations: 3, Threshold: 8, Logger: quietLogger()})
			outs[i], _ = s.Run(context.Background())
		}()
	}
	wg.Wait()
	for i, out := range outs {
		assert.Equal(t, 2, out.Iterations, reqs[i].Destination)
	}
}

func TestMockLLMHonoursDietaryRestrictions(t *testing.T) {
	req := mustRequest(t, "Rome", nil, "2025-05-01", "2025-05-02", Preferences{DietaryRestrictions: []string{"vegan"}})
	out := runMock(t, &MockLLM{}, req)

	assert.True(t, out.Approved)
	assert.Contains(t, out.Draft.Days[0].Activities[1].Description, "vegan options")
	for _, f := range out.Review.Feedback {
		assert.NotContains(t, f.Issue, "vegan")
	}
}

func TestMockLLMExplore(t *testing.T) {
	got, err := (&MockLLM{}).Complete(context.Background(), BuildExplorePrompt(ExploreRequest{Destination: "Japan", Days: 7, Budget: BudgetMid}))
	require.NoError(t, err)
	assert.Contains(t, got, "## Japan at a glance")
}
