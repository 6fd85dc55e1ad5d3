package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"trip_itinerary_planner/config"
	"trip_itinerary_planner/generator"
	"trip_itinerary_planner/publisher"
	"trip_itinerary_planner/refs"
	"trip_itinerary_planner/server"
	"trip_itinerary_planner/storage"
	"trip_itinerary_planner/telemetry"
	"trip_itinerary_planner/transit"
	"trip_itinerary_planner/weather"
)

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "tripplanner",
		Short:        "Plan multi-city trips with a research, planning and review loop",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to config.json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logs")

	rootCmd.AddCommand(newExploreCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level, _ := cfg.SlogLevel()
	if verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

// app holds everything a command needs; close releases it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	stats  *generator.Stats
	agent  *generator.Agent
	store  *storage.Storage
	pub    *publisher.Publisher
	tp     *sdktrace.TracerProvider
}

func wire(cfg config.Config, logger *slog.Logger, mock bool) (*app, error) {
	llm, err := buildLLM(cfg, mock)
	if err != nil {
		return nil, err
	}
	tp := telemetry.NewProvider(logger)
	llm = telemetry.TraceLLM(llm, tp.Tracer("tripplanner"), providerName(cfg, mock), cfg.LLM.Model)

	policy, err := cfg.RetryPolicy()
	if err != nil {
		return nil, err
	}
	stats := &generator.Stats{}
	inv, err := generator.NewInvoker(llm, policy,
		generator.WithObserver(generator.Observers{stats, generator.LogObserver{Logger: logger}}))
	if err != nil {
		return nil, err
	}

	var owm *weather.Client
	if cfg.Weather.APIKey != "" {
		if owm, err = weather.NewClient(cfg.Weather.APIKey); err != nil {
			return nil, err
		}
	}
	guide, err := transit.Builtin()
	if err != nil {
		return nil, err
	}
	threshold := cfg.ApprovalThreshold()
	agent, err := generator.NewAgent(inv, generator.AgentOptions{
		Tier:           cfg.ModelTier(),
		Threshold:      &threshold,
		Weather:        weather.NewProvider(owm, logger),
		Transit:        guide,
		RepairAttempts: 1,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &app{
		cfg:    cfg,
		logger: logger,
		stats:  stats,
		agent:  agent,
		store:  store,
		pub:    publisher.New(cfg.MapsLinks, logger),
		tp:     tp,
	}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.tp.Shutdown(ctx)
	_ = a.store.Close()
}

func (a *app) sessionConfig() generator.SessionConfig {
	return generator.SessionConfig{
		MaxIterations: a.cfg.MaxIterations,
		Threshold:     a.agent.Threshold(),
		Logger:        a.logger,
	}
}

func providerName(cfg config.Config, mock bool) string {
	if mock {
		return "mock"
	}
	return cfg.LLM.Provider
}

func buildLLM(cfg config.Config, mock bool) (generator.LLMClient, error) {
	if mock {
		return &generator.MockLLM{}, nil
	}
	if cfg.LLM == nil || cfg.LLM.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model in config or LLM_PROVIDER")
	}
	switch cfg.LLM.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(cfg.LLMSettings())
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url。
		if cfg.LLM.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(cfg.LLMSettings())
	case "mock":
		return &generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.LLM.Provider)
	}
}

func newPlanCommand() *cobra.Command {
	var (
		outDir  string
		formats []string
		refPath []string
		mock    bool
	)
	cmd := &cobra.Command{
		Use:   "plan <request.yaml>",
		Short: "Plan a trip from a request file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			fs := make([]publisher.Format, 0, len(formats))
			for _, f := range formats {
				pf, err := publisher.ParseFormat(f)
				if err != nil {
					return err
				}
				fs = append(fs, pf)
			}
			if outDir == "" {
				outDir = cfg.OutputDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			req, err := readRequest(ctx, args[0], refPath)
			if err != nil {
				return err
			}

			a, err := wire(cfg, logger, mock)
			if err != nil {
				return err
			}
			defer a.close()

			id := uuid.NewString()
			if err := a.store.CreateRun(ctx, id, req); err != nil {
				return err
			}
			sc := a.sessionConfig()
			sc.OnTransition = func(state generator.State, iteration int) {
				if !state.Terminal() {
					fmt.Fprintln(os.Stderr, progressLine(state, iteration, sc.MaxIterations))
				}
			}
			sess, err := generator.NewSession(id, req, a.agent, sc)
			if err != nil {
				return err
			}

			out, runErr := sess.Run(ctx)
			// record even when interrupted
			rec, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if runErr != nil {
				if err := a.store.FailRun(rec, id, runErr); err != nil {
					logger.Error("record failed run", "run_id", id, "error", err)
				}
				fmt.Fprintln(os.Stderr, renderFailure(runErr))
				return runErr
			}
			if err := a.store.CompleteRun(rec, out); err != nil {
				logger.Error("record run", "run_id", id, "error", err)
			}
			paths, err := a.pub.Write(outDir, out, fs)
			if err != nil {
				return err
			}
			fmt.Println(renderSummary(out, paths, a.stats.Snapshot()))
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "output directory (defaults to config output_dir)")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"markdown"}, "output formats: markdown, html, json, yaml, text")
	cmd.Flags().StringSliceVar(&refPath, "ref", nil, "reference file (repeatable)")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the offline mock model")
	return cmd
}

func newExploreCommand() *cobra.Command {
	var (
		interests []string
		budget    string
		mock      bool
	)
	cmd := &cobra.Command{
		Use:   "explore <destination> <days>",
		Short: "Get a destination overview and trip structures before planning",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("days must be a number, got %q", args[1])
			}
			req, err := generator.NewExploreRequest(args[0], days, interests, generator.BudgetTier(budget))
			if err != nil {
				return err
			}
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := wire(cfg, logger, mock)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintln(os.Stderr, progressLine(generator.StateResearching, 0, 1))
			report, err := a.agent.Explore(ctx, req)
			if err != nil {
				fmt.Fprintln(os.Stderr, renderFailure(err))
				return err
			}
			fmt.Println(renderExplore(req, report))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&interests, "interest", nil, "interest to weigh (repeatable)")
	cmd.Flags().StringVar(&budget, "budget", string(generator.BudgetMid), "budget level: budget, mid-range, luxury")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the offline mock model")
	return cmd
}

// readRequest parses the request file and loads its reference files plus
// extra. Reference paths in the file are relative to the file.
func readRequest(ctx context.Context, path string, extra []string) (generator.TripRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return generator.TripRequest{}, err
	}
	rf, err := generator.ParseRequestYAML(data)
	if err != nil {
		return generator.TripRequest{}, err
	}
	paths := make([]string, 0, len(rf.ReferenceFiles)+len(extra))
	for _, p := range rf.ReferenceFiles {
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		paths = append(paths, p)
	}
	paths = append(paths, extra...)
	blobs, err := refs.Loader{}.Load(ctx, paths)
	if err != nil {
		return generator.TripRequest{}, err
	}
	return rf.Build(blobs)
}

func newServeCommand() *cobra.Command {
	var (
		addr string
		mock bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := wire(cfg, logger, mock)
			if err != nil {
				return err
			}
			defer a.close()

			srv, err := server.New(server.Options{
				Steps:      a.agent,
				Session:    a.sessionConfig(),
				Publisher:  a.pub,
				Store:      a.store,
				Logger:     logger,
				RunTimeout: 30 * time.Minute,
			})
			if err != nil {
				return err
			}
			listen := cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			httpServer := &http.Server{Addr: listen, Handler: srv.Routes(), ReadHeaderTimeout: 10 * time.Second}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logger.Warn("starting web server", "addr", listen)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("api server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				err := httpServer.Shutdown(shutdownCtx)
				return errors.Join(err, srv.Shutdown(shutdownCtx))
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config server_addr)")
	cmd.Flags().BoolVar(&mock, "mock", false, "use the offline mock model")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent planning runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer store.Close()
			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Println(renderHistory(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg.Masked(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
