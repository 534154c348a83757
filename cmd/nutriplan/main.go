package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nutriplan/internal/alias"
	"nutriplan/internal/compile"
	"nutriplan/internal/config"
	"nutriplan/internal/database"
	"nutriplan/internal/foods"
	"nutriplan/internal/intake"
	"nutriplan/internal/llm"
	"nutriplan/internal/metrics"
	"nutriplan/internal/pipeline"
	"nutriplan/internal/recipegen"
	"nutriplan/internal/render"
	"nutriplan/internal/resolver"
	"nutriplan/internal/storage"
)

const searchCacheSize = 256

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		logger.Fatal("configuration invalid", zap.Error(err))
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "run":
		runCmd(ctx, cfg, logger, os.Args[2:])
	case "metrics-cleanup":
		cleanupCmd(ctx, cfg, logger, os.Args[2:])
	case "usage":
		usageCmd(ctx, cfg, logger, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runCmd(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	intakePath := fs.String("intake", "", "path to the intake JSON file")
	clientID := fs.String("client", "", "client identifier")
	fast := fs.Bool("fast", false, "reuse the client's stored plan instead of regenerating")
	outDir := fs.String("out", "out", "directory for the rendered deliverables")
	fs.Parse(args)

	if *intakePath == "" || *clientID == "" {
		fmt.Println("run requires -intake and -client")
		fs.Usage()
		os.Exit(1)
	}

	var form intake.RawIntakeForm
	data, err := os.ReadFile(*intakePath)
	if err != nil {
		logger.Fatal("reading intake file failed", zap.Error(err))
	}
	if err := json.Unmarshal(data, &form); err != nil {
		logger.Fatal("intake file is not valid JSON", zap.Error(err))
	}

	p, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("pipeline construction failed", zap.Error(err))
	}
	defer cleanup()

	progress := func(ev pipeline.Progress) {
		if ev.Status == pipeline.StatusFailed {
			fmt.Printf("[%d/%s] failed: %s\n", ev.StageIndex, ev.StageName, ev.Error)
			return
		}
		fmt.Printf("[%d/%s] %s\n", ev.StageIndex, ev.StageName, ev.Message)
	}

	var res *pipeline.Result
	if *fast {
		res = p.RunFastPath(ctx, *clientID, form, progress)
	} else {
		res = p.Run(ctx, *clientID, form, progress)
	}

	if !res.Success {
		logger.Error("run failed", zap.String("run_id", res.RunID), zap.String("error", res.Error))
		os.Exit(1)
	}

	if err := writeDeliverables(*outDir, res); err != nil {
		logger.Fatal("writing deliverables failed", zap.Error(err))
	}

	logger.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.String("verdict", string(res.Report.Verdict)),
		zap.Float64("score", res.Report.Total),
		zap.Int("residual_violations", len(res.Violations)))
	logger.Info("process health", metrics.GetSysHealth(cfg.DraftStorePath).Fields()...)
	fmt.Printf("Plan ready: %s (quality: %s)\n", *outDir, res.Report.Verdict)
}

func cleanupCmd(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
	days := fs.Int("days", 30, "keep records for the last N days")
	fs.Parse(args)

	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		logger.Fatal("opening metrics database failed", zap.Error(err))
	}
	defer db.Close()

	affected, err := metrics.NewStore(db.SQL).Cleanup(ctx, *days)
	if err != nil {
		logger.Fatal("cleanup failed", zap.Error(err))
	}
	fmt.Printf("Removed %d old metric records.\n", affected)
}

func usageCmd(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("usage", flag.ExitOnError)
	days := fs.Int("days", 7, "show usage for the last N days")
	fs.Parse(args)

	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		logger.Fatal("opening metrics database failed", zap.Error(err))
	}
	defer db.Close()

	usage, err := metrics.NewStore(db.SQL).GetDailyUsage(ctx, *days)
	if err != nil {
		logger.Fatal("reading usage failed", zap.Error(err))
	}
	for _, u := range usage {
		fmt.Printf("%s  prompt=%d completion=%d runs=%d\n", u.Date, u.TotalPrompt, u.TotalCompletion, u.TotalExecution)
	}
}

// buildPipeline wires every configured component. Optional pieces that are
// not configured are left out rather than stubbed: the pipeline's own
// fallbacks cover their absence.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pipeline.Pipeline, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var primary, secondary llm.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("initializing gemini client: %w", err)
		}
		primary = gemini
		if c, ok := gemini.(llm.Closer); ok {
			closers = append(closers, func() { c.Close() })
		}
	}
	if cfg.GroqAPIKey != "" {
		secondary = llm.NewGroqClient(cfg.GroqAPIKey)
	}

	var providers []foods.Provider
	if cfg.FoodDBPath != "" {
		foodDB, err := database.NewDB(cfg.FoodDBPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening food database: %w", err)
		}
		closers = append(closers, func() { foodDB.Close() })
		providers = append(providers, foods.NewLocalDB(foodDB.SQL))
	}
	if cfg.FDCAPIKey != "" {
		fdc, err := foods.NewCached(foods.NewFDC(cfg.FDCAPIKey, ""), searchCacheSize)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wrapping fdc provider: %w", err)
		}
		providers = append(providers, fdc)
	}
	if cfg.BrandedFoodAPIURL != "" {
		branded, err := foods.NewCached(foods.NewBranded(cfg.BrandedFoodAPIURL, cfg.BrandedFoodAPIKey), searchCacheSize)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wrapping branded provider: %w", err)
		}
		providers = append(providers, branded)
	}

	res := resolver.New(alias.NewEmbedded(), providers, logger)
	agent := recipegen.New(primary, secondary, res, logger)
	compiler := compile.New(res, logger)

	renderer, err := render.New(logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initializing renderer: %w", err)
	}

	opts := []pipeline.Option{
		pipeline.WithCacheWarmer(pipeline.NewCacheWarmer(providers, logger)),
		pipeline.WithStageTimeouts(cfg.ProfileStageTimeout, cfg.GenerationStageTimeout, cfg.RenderStageTimeout),
	}

	if cfg.DraftStorePath != "" {
		store, err := storage.NewDraftStore(cfg.DraftStorePath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("initializing draft store: %w", err)
		}
		opts = append(opts, pipeline.WithDraftStore(store))
	}

	if cfg.MetricsDBPath != "" {
		metricsDB, err := database.NewDB(cfg.MetricsDBPath)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("opening metrics database: %w", err)
		}
		closers = append(closers, func() { metricsDB.Close() })
		opts = append(opts, pipeline.WithMetrics(metrics.NewStore(metricsDB.SQL)))
	}

	return pipeline.New(agent, compiler, renderer, logger, opts...), cleanup, nil
}

func writeDeliverables(dir string, res *pipeline.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	d := res.Deliverables
	files := map[string][]byte{
		"summary.html": d.SummaryHTML,
		"grid.html":    d.GridHTML,
		"grocery.html": d.GroceryHTML,
	}
	if len(d.PDF) > 0 {
		files["plan.pdf"] = d.PDF
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printUsage() {
	fmt.Println("Usage: nutriplan <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  run -intake <file> -client <id> [-fast] [-out <dir>]   generate a plan")
	fmt.Println("  metrics-cleanup [-days N]                              remove old metric records")
	fmt.Println("  usage [-days N]                                        show recent token usage")
}
