package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trip_itinerary_planner/generator"
	"trip_itinerary_planner/publisher"
	"trip_itinerary_planner/storage"
)

const tripBody = `{
	"destination": "Tokyo",
	"additional_destinations": ["Kyoto"],
	"dates": {"start_date": "2025-04-01", "end_date": "2025-04-04"},
	"preferences": {"interests": ["food"], "pace": "moderate", "budget": "mid-range"},
	"references": ["Saved places https://maps.app.goo.gl/abc"]
}`

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func mockAgent(t *testing.T) *generator.Agent {
	t.Helper()
	inv, err := generator.NewInvoker(&generator.MockLLM{}, generator.DefaultRetryPolicy())
	require.NoError(t, err)
	a, err := generator.NewAgent(inv, generator.AgentOptions{RepairAttempts: 1, Logger: quiet()})
	require.NoError(t, err)
	return a
}

func openStore(t *testing.T) *storage.Storage {
	t.Helper()
	st, err := storage.New(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestServer(t *testing.T, steps generator.Steps, st *storage.Storage) *httptest.Server {
	t.Helper()
	_, ts := newServerPair(t, steps, st)
	return ts
}

func newServerPair(t *testing.T, steps generator.Steps, st *storage.Storage) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := New(Options{
		Steps:     steps,
		Session:   generator.SessionConfig{MaxIterations: 3, Threshold: 8},
		Publisher: publisher.New(true, quiet()),
		Store:     st,
		Logger:    quiet(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ts
}

func decode(t *testing.T, res *http.Response) tripResp {
	t.Helper()
	defer res.Body.Close()
	var out tripResp
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func post(t *testing.T, ts *httptest.Server, query, body string) *http.Response {
	t.Helper()
	res, err := http.Post(ts.URL+"/api/trips"+query, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return res
}

func TestCreateTripAndWait(t *testing.T) {
	st := openStore(t)
	ts := newTestServer(t, mockAgent(t), st)

	res := post(t, ts, "?wait=true", tripBody)
	require.Equal(t, http.StatusOK, res.StatusCode)
	body := decode(t, res)
	require.NotNil(t, body.Outcome)
	assert.Equal(t, generator.StateApproved, body.State)
	assert.True(t, body.Outcome.Approved)
	assert.Equal(t, 2, body.Outcome.Iterations)
	assert.Len(t, body.Outcome.Draft.Days, 4)

	run, err := st.GetRun(context.Background(), body.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusApproved, run.Status)

	res, err = http.Get(ts.URL + "/api/trips/" + body.RunID + "/itinerary.md")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/markdown; charset=utf-8", res.Header.Get("Content-Type"))
	md, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Trip to Tokyo → Kyoto")

	res, err = http.Get(ts.URL + "/api/trips")
	require.NoError(t, err)
	defer res.Body.Close()
	var list struct {
		Runs []storage.Run `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, body.RunID, list.Runs[0].ID)
}

func TestCreateTripAsync(t *testing.T) {
	ts := newTestServer(t, mockAgent(t), openStore(t))

	res := post(t, ts, "", tripBody)
	require.Equal(t, http.StatusAccepted, res.StatusCode)
	id := decode(t, res).RunID
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		res, err := http.Get(ts.URL + "/api/trips/" + id)
		if err != nil {
			return false
		}
		defer res.Body.Close()
		var body tripResp
		return json.NewDecoder(res.Body).Decode(&body) == nil && body.Outcome != nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestStoredRunsSurviveRestart(t *testing.T) {
	st := openStore(t)
	first := newTestServer(t, mockAgent(t), st)
	id := decode(t, post(t, first, "?wait=1", tripBody)).RunID

	second := newTestServer(t, mockAgent(t), st)
	res, err := http.Get(second.URL + "/api/trips/" + id)
	require.NoError(t, err)
	body := decode(t, res)
	require.NotNil(t, body.Run)
	require.NotNil(t, body.Outcome)
	assert.Equal(t, generator.StateApproved, body.State)

	res, err = http.Get(second.URL + "/api/trips/" + id + "/itinerary.json")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
}

func TestFinishedRunsLeaveMemory(t *testing.T) {
	srv, ts := newServerPair(t, mockAgent(t), openStore(t))

	body := decode(t, post(t, ts, "?wait=1", tripBody))
	require.NotNil(t, body.Outcome)
	assert.Zero(t, srv.runs.size())

	res, err := http.Get(ts.URL + "/api/trips/" + body.RunID)
	require.NoError(t, err)
	got := decode(t, res)
	require.NotNil(t, got.Run, "served from storage")
	require.NotNil(t, got.Outcome)
	assert.Equal(t, body.Outcome.Review.Score, got.Outcome.Review.Score)

	res, err = http.Get(ts.URL + "/api/trips/" + body.RunID + "/itinerary.md")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

type failingSteps struct{}

func (failingSteps) Research(context.Context, generator.TripRequest) (generator.ResearchNotes, error) {
	return generator.ResearchNotes{}, errors.New("boom")
}

func (failingSteps) Plan(context.Context, generator.TripRequest, generator.ResearchNotes, *generator.ItineraryDraft, *generator.ReviewResult) (generator.ItineraryDraft, error) {
	return generator.ItineraryDraft{}, errors.New("unreachable")
}

func (failingSteps) Review(context.Context, generator.ItineraryDraft, generator.TripRequest) (generator.ReviewResult, error) {
	return generator.ReviewResult{}, errors.New("unreachable")
}

func TestFailedRunIsReported(t *testing.T) {
	st := openStore(t)
	ts := newTestServer(t, failingSteps{}, st)

	body := decode(t, post(t, ts, "?wait=1", tripBody))
	assert.Equal(t, generator.StateFailed, body.State)
	assert.Nil(t, body.Outcome)
	assert.Contains(t, body.Report, "step: research")

	run, err := st.GetRun(context.Background(), body.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusFailed, run.Status)

	res, err := http.Get(ts.URL + "/api/trips/" + body.RunID + "/itinerary.md")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res, err = http.Get(ts.URL + "/api/trips/" + body.RunID)
	require.NoError(t, err)
	stored := decode(t, res)
	assert.Equal(t, generator.StateFailed, stored.State)
	assert.Equal(t, body.Report, stored.Report)
}

func TestRequestErrors(t *testing.T) {
	ts := newTestServer(t, mockAgent(t), openStore(t))

	res := post(t, ts, "", `{"destination": "Tokyo", "dates": {"start_date": "2025-04-04", "end_date": "2025-04-01"}}`)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = post(t, ts, "", `{not json`)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	for path, want := range map[string]int{
		"/api/trips/nope":                http.StatusNotFound,
		"/api/trips/nope/itinerary.md":   http.StatusNotFound,
		"/api/trips/nope/itinerary.pdf":  http.StatusBadRequest,
		"/api/trips/nope/something.html": http.StatusNotFound,
		"/api/trips?limit=zero":          http.StatusBadRequest,
	} {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, want, res.StatusCode, path)
	}
}

func TestIndexAndCORS(t *testing.T) {
	ts := newTestServer(t, mockAgent(t), openStore(t))

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	page, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(page), "Trip Itinerary Planner")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/trips", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, "*", res.Header.Get("Access-Control-Allow-Origin"))
}
