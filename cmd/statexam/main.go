package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/statexam/internal/config"
	"github.com/pavelanni/statexam/internal/handler"
	appI18n "github.com/pavelanni/statexam/internal/i18n"
	"github.com/pavelanni/statexam/internal/importer"
	"github.com/pavelanni/statexam/internal/llm"
	"github.com/pavelanni/statexam/internal/llm/prompts"
	"github.com/pavelanni/statexam/internal/metrics"
	"github.com/pavelanni/statexam/internal/model"
	"github.com/pavelanni/statexam/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "statexam",
		Short:        "Statistics certification exam and practice server",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, importCmd(), exportCmd(), statsCmd(), reviewCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", "data", "Directory holding problems/ and history/")
	f.String("progress-backend", "json", "Progress storage (json, sqlite)")
	f.StringP("lang", "l", "en", "UI language (en, ja)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func llmFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "Essay review prompt variant (strict, standard, lenient)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP exam server",
		RunE:  runServe,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /statexam)")
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import problems from an .xlsx or .csv file into the bank",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("grade", "g", "", "Target grade (2, pre1, 1)")
	f.StringP("category", "c", "", "Target category")
	f.String("sheet", "", "Sheet name (xlsx only, default: active sheet)")
	f.Int("start-row", 2, "First data row (1-based)")
	f.Bool("dry-run", false, "Validate without writing")
	_ = cmd.MarkFlagRequired("grade")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export progress records as JSON",
		RunE:  runExport,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("grade", "g", "", "Only sessions of this grade")
	f.StringP("mode", "m", "", "Only sessions of this mode (exam, practice)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print progress statistics",
		RunE:  runStats,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("grade", "g", "", "Only sessions of this grade")
	f.Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review SESSION_ID",
		Short: "Ask an LLM for feedback on the essay answers of a session",
		Args:  cobra.ExactArgs(1),
		RunE:  runReview,
	}
	commonFlags(cmd)
	llmFlags(cmd)
	cmd.Flags().Duration("timeout", 2*time.Minute, "Timeout for the whole review")
	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("STATEXAM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("statexam")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/statexam")
	v.AddConfigPath("/etc/statexam")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup prepares logging, config and i18n shared by every command.
func setup(cmd *cobra.Command) (*viper.Viper, error) {
	v := viperForCmd(cmd)
	setupLogging(v)
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return nil, fmt.Errorf("init i18n: %w", err)
	}
	return v, nil
}

func openBank(v *viper.Viper) *store.Bank {
	return store.NewBank(filepath.Join(v.GetString("data-dir"), "problems"))
}

// openProgress opens the configured progress backend. The returned close
// function is never nil.
func openProgress(v *viper.Viper) (handler.ProgressStore, func() error, error) {
	dataDir := v.GetString("data-dir")
	switch backend := strings.ToLower(v.GetString("progress-backend")); backend {
	case "", "json":
		h, err := store.NewHistory(filepath.Join(dataDir, "history"))
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		return h, func() error { return nil }, nil
	case "sqlite":
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := store.New(filepath.Join(dataDir, "statexam.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown progress backend %q", backend)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}

	grades, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load grade config: %w", err)
	}
	progress, closeProgress, err := openProgress(v)
	if err != nil {
		return err
	}
	defer closeProgress()

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	m := metrics.New()
	h := handler.New(openBank(v), progress, grades, m, basePath)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(appI18n.Middleware())
	r.Handle("/metrics", m.Handler())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Group(func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	}

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("starting server",
		"addr", addr,
		"data_dir", v.GetString("data-dir"),
		"progress_backend", v.GetString("progress-backend"),
		"lang", v.GetString("lang"),
		"base_path", basePath,
	)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runImport(cmd *cobra.Command, args []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}

	cfg := importer.DefaultConfig()
	cfg.FilePath = args[0]
	cfg.Grade = model.Grade(v.GetString("grade"))
	cfg.Category = v.GetString("category")
	cfg.SheetName = v.GetString("sheet")
	cfg.StartRow = v.GetInt("start-row")
	cfg.DryRun = v.GetBool("dry-run")
	if !cfg.Grade.Valid() {
		slog.Warn("importing into unknown grade", "grade", cfg.Grade)
	}

	res, err := importer.Import(openBank(v), cfg)
	if err != nil {
		return fmt.Errorf("import %s: %w", cfg.FilePath, err)
	}
	for _, e := range res.Errors {
		slog.Warn("skipped row", "error", e)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "processed %d, created %d, updated %d, skipped %d\n",
		res.TotalProcessed, res.Created, res.Updated, res.Skipped)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	progress, closeProgress, err := openProgress(v)
	if err != nil {
		return err
	}
	defer closeProgress()

	export, err := store.ExportProgress(progress,
		model.Grade(v.GetString("grade")), model.Mode(v.GetString("mode")), time.Now())
	if err != nil {
		return fmt.Errorf("export progress: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)
	slog.Info("exported progress", "sessions", len(export.Sessions), "output", outPath)
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	progress, closeProgress, err := openProgress(v)
	if err != nil {
		return err
	}
	defer closeProgress()

	stats, err := progress.Statistics(model.Grade(v.GetString("grade")))
	if err != nil {
		return fmt.Errorf("compute statistics: %w", err)
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(v.GetString("lang")))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%d\n", appI18n.T(ctx, "TotalSessions"), stats.TotalSessions)
	fmt.Fprintf(tw, "%s\t%.1f%% (%d/%d)\n", appI18n.T(ctx, "AverageAccuracy"),
		stats.AverageAccuracy*100, stats.TotalCorrect, stats.TotalQuestions)
	if len(stats.CategoryAverages) > 0 {
		fmt.Fprintf(tw, "%s\n", appI18n.T(ctx, "CategoryScores"))
		for _, c := range sortedKeys(stats.CategoryAverages) {
			fmt.Fprintf(tw, "  %s\t%.1f%%\n", c, stats.CategoryAverages[c]*100)
		}
	}
	return tw.Flush()
}

func runReview(cmd *cobra.Command, args []string) error {
	v, err := setup(cmd)
	if err != nil {
		return err
	}
	progress, closeProgress, err := openProgress(v)
	if err != nil {
		return err
	}
	defer closeProgress()

	rec, err := progress.Get(args[0])
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", variant)
		variant = string(prompts.Standard)
	}
	client := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), prompts.Variant(variant))

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("LLM health check: %w", err)
	}
	slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", client.Model())

	reviews, err := reviewEssays(ctx, client, openBank(v), rec)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		slog.Info("session has no essay answers", "session_id", rec.SessionID)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(reviews)
}

type essayReviewer interface {
	ReviewEssay(ctx context.Context, p model.Problem, answer string) (*llm.EssayReview, error)
}

type problemLookup interface {
	GetByID(id string) (*model.Problem, bool)
}

// reviewEssays reviews every answered essay problem of rec. Problems no
// longer in the bank are skipped.
func reviewEssays(ctx context.Context, r essayReviewer, bank problemLookup, rec *model.ProgressRecord) ([]llm.EssayReview, error) {
	reviews := []llm.EssayReview{}
	for _, d := range rec.DetailedResults {
		p, ok := bank.GetByID(d.ProblemID)
		if !ok {
			slog.Warn("problem no longer in bank", "problem_id", d.ProblemID)
			continue
		}
		if p.Type() != model.TypeEssay || d.UserAnswer == nil {
			continue
		}
		answer, ok := d.UserAnswer.(string)
		if !ok {
			answer = fmt.Sprint(d.UserAnswer)
		}
		review, err := r.ReviewEssay(ctx, *p, answer)
		if err != nil {
			return nil, fmt.Errorf("review %s: %w", d.ProblemID, err)
		}
		reviews = append(reviews, *review)
	}
	return reviews, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
