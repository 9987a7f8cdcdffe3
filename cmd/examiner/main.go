package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rahibchy/exam-grading-system/internal/batch"
	"github.com/rahibchy/exam-grading-system/internal/exam"
	"github.com/rahibchy/exam-grading-system/internal/grader"
	"github.com/rahibchy/exam-grading-system/internal/handler"
	appI18n "github.com/rahibchy/exam-grading-system/internal/i18n"
	"github.com/rahibchy/exam-grading-system/internal/llm"
	"github.com/rahibchy/exam-grading-system/internal/llm/prompts"
	"github.com/rahibchy/exam-grading-system/internal/model"
	"github.com/rahibchy/exam-grading-system/internal/ocr"
	"github.com/rahibchy/exam-grading-system/internal/ocr/tesseract"
	"github.com/rahibchy/exam-grading-system/internal/pipeline"
	"github.com/rahibchy/exam-grading-system/internal/report"
	"github.com/rahibchy/exam-grading-system/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "examiner",
		Short: "Segment scanned exam scripts and grade them with confidence scores",
	}

	grade := gradeCmd()
	root.AddCommand(grade, serveCmd(), questionsCmd())

	// Make "grade" the default when no subcommand is given.
	root.RunE = grade.RunE
	root.Args = grade.Args
	root.Flags().AddFlagSet(grade.Flags())

	return root
}

// addGradingFlags registers the flags shared by every command that grades.
func addGradingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("questions", "q", "", "Question definition file (YAML or JSON); built-in exam when empty")
	f.IntP("workers", "w", 0, "Scripts graded concurrently (0 = one per CPU)")
	f.Float64("noise-threshold", model.DefaultNoiseThreshold, "Noise ratio above which an answer is SUSPECT_OCR")
	f.Int("marker-keywords", model.DefaultMarkerKeyWords, "Leading marker words used by the last-resort match")
	f.Float64("header-fraction", model.DefaultHeaderFraction, "Share of the first page searched for the student identity")
	f.Int("tail-cap", model.DefaultTailCap, "Characters captured for the last question")
	f.String("grader", "heuristic", "Scoring backend (heuristic, llm)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.Standard), "Grading prompt variant (strict, standard, lenient)")
	f.StringP("lang", "l", "en", "Language for review issues (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade [flags] script.pdf...",
		Short: "Grade PDF scripts and write the marksheet",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGrade,
	}
	addGradingFlags(cmd)
	f := cmd.Flags()
	f.StringP("output", "o", "-", "Marksheet output path (- for stdout)")
	f.StringP("review", "r", "", "Write the manual-review list to this path")
	f.StringP("format", "f", "csv", "Output format (csv, json)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addGradingFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("admin-password", "", "Admin password for score overrides (or set EXAMINER_ADMIN_PASSWORD)")
	f.Int64("max-upload", handler.DefaultMaxUpload, "Maximum upload size in bytes")
	return cmd
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Validate and print the question definitions",
		Args:  cobra.NoArgs,
		RunE:  runQuestions,
	}
	f := cmd.Flags()
	f.StringP("questions", "q", "", "Question definition file (YAML or JSON); built-in exam when empty")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("EXAMINER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("examiner")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/examiner")
	v.AddConfigPath("/etc/examiner")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// gradingConfig builds and validates the exam configuration from flags.
func gradingConfig(v *viper.Viper) (model.GradingConfig, error) {
	questions, err := exam.Load(v.GetString("questions"))
	if err != nil {
		return model.GradingConfig{}, fmt.Errorf("load questions: %w", err)
	}
	cfg := model.DefaultGradingConfig(questions)
	cfg.NoiseThreshold = v.GetFloat64("noise-threshold")
	cfg.MarkerKeyWords = v.GetInt("marker-keywords")
	cfg.HeaderFraction = v.GetFloat64("header-fraction")
	cfg.TailCap = v.GetInt("tail-cap")
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newGrader(ctx context.Context, v *viper.Viper) (grader.Grader, error) {
	switch strings.ToLower(v.GetString("grader")) {
	case "", "heuristic":
		return grader.Heuristic{}, nil
	case "llm":
		variant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
		client, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"), prompts.Variant(variant))
		if err != nil {
			return nil, fmt.Errorf("create LLM client: %w", err)
		}
		if err := client.Ping(ctx); err != nil {
			return nil, fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return client, nil
	default:
		return nil, fmt.Errorf("unknown grader %q", v.GetString("grader"))
	}
}

// newRunner wires OCR, the script pipeline and the worker pool.
func newRunner(ctx context.Context, v *viper.Viper) (*batch.Runner, error) {
	cfg, err := gradingConfig(v)
	if err != nil {
		return nil, err
	}
	g, err := newGrader(ctx, v)
	if err != nil {
		return nil, err
	}

	engine := tesseract.New()

	p := pipeline.New(cfg, engine, g)
	return batch.New(ocr.NewPDFTranscriber(engine), p, v.GetInt("workers")), nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format := strings.ToLower(v.GetString("format"))
	if format != "csv" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(v.GetString("lang")))

	runner, err := newRunner(ctx, v)
	if err != nil {
		return err
	}

	scripts := make([]batch.Script, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		scripts = append(scripts, batch.Script{Name: filepath.Base(path), Data: data})
	}

	b, runErr := runner.Run(ctx, scripts)
	if runErr != nil {
		slog.Warn("writing partial results", "completed", len(b.Results), "error", runErr)
	}

	questions := runner.Pipeline.Questions()
	err = writeOutput(v.GetString("output"), func(w io.Writer) error {
		if format == "json" {
			return report.WriteJSON(w, report.Export(ctx, "", questions, b.Results))
		}
		return report.WriteCSV(w, questions, b.Results)
	})
	if err != nil {
		return err
	}

	if path := v.GetString("review"); path != "" {
		entries := report.Review(ctx, b.Results)
		err = writeOutput(path, func(w io.Writer) error {
			if format == "json" {
				return report.WriteJSON(w, entries)
			}
			return report.WriteReviewCSV(w, entries)
		})
		if err != nil {
			return err
		}
	}

	slog.Info(report.SummaryLine(ctx, model.Summarize(b.Results)))
	return runErr
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func runServe(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New()
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := handler.SeedAdmin(db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	runner, err := newRunner(ctx, v)
	if err != nil {
		return err
	}
	h := handler.New(db, runner, v.GetInt64("max-upload"))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		_ = srv.Shutdown(context.Background())
	}()

	slog.Info("starting server",
		"addr", addr,
		"grader", v.GetString("grader"),
		"workers", runner.Workers,
		"questions", len(runner.Pipeline.Questions()),
		"lang", lang,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	setupLogging(v)

	questions, err := exam.Load(v.GetString("questions"))
	if err != nil {
		return err
	}
	total := 0
	for _, q := range questions {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d marks\tmin %d\t%q\t%s\n", q.ID, q.MaxMarks, q.MinLength, q.Marker, q.Name)
		total += q.MaxMarks
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d questions, %d marks\n", len(questions), total)
	return nil
}
