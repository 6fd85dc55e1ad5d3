package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"trip_itinerary_planner/generator"
	"trip_itinerary_planner/publisher"
	"trip_itinerary_planner/refs"
	"trip_itinerary_planner/storage"
)

//go:embed web
var embeddedStatic embed.FS

// maxBodyBytes caps a trip request body, inline references included.
const maxBodyBytes = 1 << 20

// Options wires the server's collaborators.
type Options struct {
	Steps     generator.Steps
	Session   generator.SessionConfig
	Publisher *publisher.Publisher
	Store     *storage.Storage
	Refs      refs.Loader
	Logger    *slog.Logger
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
	// RunTimeout bounds one planning run; zero means no limit.
	RunTimeout time.Duration
}

type Server struct {
	opts     Options
	logger   *slog.Logger
	runs     *runStore
	staticFS http.Handler

	// runs outlive the request that started them
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// liveRun is a run started by this process.
type liveRun struct {
	session *generator.Session
	done    chan struct{}
	outcome *generator.Outcome
	err     error
}

type runStore struct {
	mu   sync.Mutex
	runs map[string]*liveRun
}

func newStore() *runStore {
	return &runStore{runs: make(map[string]*liveRun)}
}

func (s *runStore) set(id string, run *liveRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = run
}

func (s *runStore) get(id string) (*liveRun, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	return run, ok
}

// finish publishes the result of a run. A run whose result reached storage
// is dropped from memory; later lookups read it back from storage.
func (s *runStore) finish(id string, run *liveRun, out *generator.Outcome, err error, stored bool) {
	s.mu.Lock()
	run.outcome, run.err = out, err
	if stored {
		delete(s.runs, id)
	}
	s.mu.Unlock()
	close(run.done)
}

func (s *runStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

func (s *runStore) result(run *liveRun) (*generator.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return run.outcome, run.err
}

func New(opts Options) (*Server, error) {
	if opts.Steps == nil {
		return nil, errors.New("planning steps required")
	}
	if opts.Publisher == nil {
		return nil, errors.New("publisher required")
	}
	if opts.Store == nil {
		return nil, errors.New("run store required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = opts.Logger
	}

	sub, err := fs.Sub(embeddedStatic, "web")
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:     opts,
		logger:   opts.Logger,
		runs:     newStore(),
		staticFS: http.FileServer(http.FS(sub)),
		baseCtx:  ctx,
		cancel:   cancel,
	}, nil
}

// Shutdown cancels in-flight runs and waits for them to record their result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/trips", s.handleTripCreate)
	mux.HandleFunc("GET /api/trips", s.handleTripList)
	mux.HandleFunc("GET /api/trips/{id}", s.handleTripGet)
	mux.HandleFunc("GET /api/trips/{id}/{file}", s.handleItinerary)
	mux.Handle("GET /", s.staticFS)

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return logMiddleware(s.logger, c.Handler(mux))
}

// --- Handlers ---

type tripCreateReq struct {
	generator.RequestFile
	// References are inline notes or exported lists; files are a CLI concern.
	References []string `json:"references,omitempty"`
}

type tripResp struct {
	RunID      string             `json:"run_id"`
	State      generator.State    `json:"state"`
	Iteration  int                `json:"iteration"`
	History    []generator.Turn   `json:"history,omitempty"`
	Outcome    *generator.Outcome `json:"outcome,omitempty"`
	Run        *storage.Run       `json:"run,omitempty"`
	ErrorClass string             `json:"error_class,omitempty"`
	Report     string             `json:"report,omitempty"`
}

func (s *Server) handleTripCreate(w http.ResponseWriter, r *http.Request) {
	var body tripCreateReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	blobs := make([]string, 0, len(body.References))
	for i, text := range body.References {
		blob, err := s.opts.Refs.FromText(fmt.Sprintf("reference %d", i+1), text)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		blobs = append(blobs, blob)
	}
	req, err := body.Build(blobs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	id := uuid.NewString()
	sess, err := generator.NewSession(id, req, s.opts.Steps, s.opts.Session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.opts.Store.CreateRun(r.Context(), id, req); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	run := &liveRun{session: sess, done: make(chan struct{})}
	s.runs.set(id, run)
	s.start(id, run)

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		select {
		case <-run.done:
			writeJSON(w, http.StatusOK, s.liveResp(id, run))
		case <-r.Context().Done():
		}
		return
	}
	writeJSON(w, http.StatusAccepted, s.liveResp(id, run))
}

func (s *Server) start(id string, run *liveRun) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := s.baseCtx
		if s.opts.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
			defer cancel()
		}
		out, err := run.session.Run(ctx)

		// the run's own ctx may be done; recording must still happen
		rec, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err != nil {
			serr := s.opts.Store.FailRun(rec, id, err)
			if serr != nil {
				s.logger.Error("record failed run", "run_id", id, "error", serr)
			}
			s.runs.finish(id, run, nil, err, serr == nil)
			return
		}
		serr := s.opts.Store.CompleteRun(rec, out)
		if serr != nil {
			s.logger.Error("record run", "run_id", id, "error", serr)
		}
		s.runs.finish(id, run, &out, nil, serr == nil)
	}()
}

func (s *Server) liveResp(id string, run *liveRun) tripResp {
	state, iter := run.session.State()
	resp := tripResp{RunID: id, State: state, Iteration: iter}
	out, err := s.runs.result(run)
	switch {
	case out != nil:
		resp.Outcome = out
	case err != nil:
		resp.ErrorClass = generator.ErrorClass(err)
		resp.Report = generator.Report(err)
		resp.History = run.session.History()
	default:
		resp.History = run.session.History()
	}
	return resp
}

func (s *Server) handleTripList(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := s.opts.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleTripGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if run, ok := s.runs.get(id); ok {
		writeJSON(w, http.StatusOK, s.liveResp(id, run))
		return
	}

	// runs from earlier processes only exist in storage
	stored, err := s.opts.Store.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := tripResp{RunID: id, State: generator.State(stored.Status), Iteration: stored.Iterations, Run: stored,
		ErrorClass: stored.ErrorClass, Report: stored.Report}
	if stored.Status == storage.StatusApproved || stored.Status == storage.StatusExhausted {
		if resp.Outcome, err = s.opts.Store.Outcome(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleItinerary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ext, ok := strings.CutPrefix(r.PathValue("file"), "itinerary.")
	if !ok {
		http.NotFound(w, r)
		return
	}
	format, err := publisher.ParseFormat(ext)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, status, err := s.outcome(r.Context(), id)
	if err != nil {
		writeError(w, status, err)
		return
	}
	data, err := s.opts.Publisher.Render(*out, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	_, _ = w.Write(data)
}

// outcome finds the finished outcome of a run, live or stored.
func (s *Server) outcome(ctx context.Context, id string) (*generator.Outcome, int, error) {
	if run, ok := s.runs.get(id); ok {
		select {
		case <-run.done:
		default:
			return nil, http.StatusConflict, fmt.Errorf("run %s is still in progress", id)
		}
		out, err := s.runs.result(run)
		if err != nil {
			return nil, http.StatusConflict, fmt.Errorf("run %s failed: %w", id, err)
		}
		return out, http.StatusOK, nil
	}
	out, err := s.opts.Store.Outcome(ctx, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, http.StatusNotFound, err
	case err != nil:
		return nil, http.StatusConflict, err
	}
	return out, http.StatusOK, nil
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		path := r.URL.Path
		if path == "" {
			path = "/"
		}
		logger.Info("http request", "method", r.Method, "path", path, "status", rec.status, "duration", time.Since(start))
	})
}
