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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/ieltsprep/mockcenter/internal/auth"
	"github.com/ieltsprep/mockcenter/internal/handler"
	appI18n "github.com/ieltsprep/mockcenter/internal/i18n"
	"github.com/ieltsprep/mockcenter/internal/llm"
	"github.com/ieltsprep/mockcenter/internal/llm/prompts"
	"github.com/ieltsprep/mockcenter/internal/model"
	"github.com/ieltsprep/mockcenter/internal/results"
	"github.com/ieltsprep/mockcenter/internal/scoring"
	"github.com/ieltsprep/mockcenter/internal/store"
)

//go:generate templ generate

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mockcenter",
		Short:        "IELTS mock test scoring server",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, scoreCmd(), importCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mockcenter --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addDBFlags(f *pflag.FlagSet) {
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "mockcenter.db", "SQLite database path or Postgres connection URL")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP scoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addDBFlags(f)
	f.StringSliceP("tests", "t", nil, "Test catalogue JSON files to import at startup (repeatable)")
	f.String("scoring-mode", string(scoring.ModeRaw), "Band conversion mode (raw, normalized)")
	f.String("jwt-secret", "", "HMAC secret for access tokens (or set MOCKCENTER_JWT_SECRET)")
	f.Duration("token-ttl", auth.DefaultTokenTTL, "Access token lifetime")
	f.StringSlice("allowed-origins", nil, "CORS origins allowed to call the API (default any)")
	f.StringP("lang", "l", "en", "Default page language (en, ru, uz)")
	f.Bool("llm-enabled", false, "Enable writing band suggestions from an LLM")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("prompt-variant", string(prompts.PromptStandard), "Writing prompt variant (strict, standard, lenient)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-email", "admin@mockcenter.local", "Email of the admin seeded into an empty database")
	f.String("admin-password", "", "Initial admin password (or set MOCKCENTER_ADMIN_PASSWORD)")
	addLogFlags(f)
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Convert scores to bands without a server",
	}

	band := &cobra.Command{
		Use:   "band",
		Short: "Convert a Listening or Reading score to a band",
		RunE:  runScoreBand,
	}
	f := band.Flags()
	f.String("section", "", "Section (listening, reading)")
	f.Int("score", 0, "Number of correct answers")
	f.Int("total", scoring.DefaultSectionTotal, "Number of questions in the section")
	f.String("mode", string(scoring.ModeRaw), "Band conversion mode (raw, normalized)")
	_ = band.MarkFlagRequired("section")
	_ = band.MarkFlagRequired("score")

	aggregate := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute the overall band of a full mock",
		RunE:  runScoreAggregate,
	}
	f = aggregate.Flags()
	f.Int("listening", 0, "Listening correct answers")
	f.Int("listening-total", scoring.DefaultSectionTotal, "Listening questions")
	f.Int("reading", 0, "Reading correct answers")
	f.Int("reading-total", scoring.DefaultSectionTotal, "Reading questions")
	f.String("writing", "", "Writing band (e.g. 6.5)")
	f.String("mode", string(scoring.ModeRaw), "Band conversion mode (raw, normalized)")
	_ = aggregate.MarkFlagRequired("listening")
	_ = aggregate.MarkFlagRequired("reading")
	_ = aggregate.MarkFlagRequired("writing")

	cmd.AddCommand(band, aggregate)
	return cmd
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import test catalogue JSON files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runImport,
	}
	f := cmd.Flags()
	addDBFlags(f)
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export scored results as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addDBFlags(f)
	f.String("scoring-mode", string(scoring.ModeRaw), "Band conversion mode (raw, normalized)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

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

	v.SetEnvPrefix("MOCKCENTER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mockcenter")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mockcenter")
	v.AddConfigPath("/etc/mockcenter")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(v *viper.Viper) (*store.Store, error) {
	driver, err := store.ParseDriver(v.GetString("db-driver"))
	if err != nil {
		return nil, err
	}
	db, err := store.Open(driver, v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode, err := scoring.ParseMode(v.GetString("scoring-mode"))
	if err != nil {
		return err
	}

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := seedAdmin(db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(); err != nil {
		slog.Warn("failed to clean up expired sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}

	var assessor results.WritingAssessor
	if v.GetBool("llm-enabled") {
		llmClient, err := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			promptVariant,
		)
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		if err := llmClient.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		assessor = llmClient
	}

	svc := results.NewService(db, mode, assessor)
	if err := importFiles(svc, v.GetStringSlice("tests")); err != nil {
		return fmt.Errorf("import tests: %w", err)
	}

	cfg := model.ServerConfig{
		ScoringMode:   mode,
		JWTSecret:     v.GetString("jwt-secret"),
		TokenTTL:      v.GetDuration("token-ttl"),
		AllowedOrigin: v.GetStringSlice("allowed-origins"),
		PromptVariant: promptVariant,
		Lang:          lang,
		SecureCookies: v.GetBool("secure-cookies"),
	}
	h, err := handler.New(db, svc, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	slog.Info("starting server",
		"addr", addr,
		"db_driver", db.Driver(),
		"scoring_mode", mode,
		"lang", lang,
		"llm_enabled", assessor != nil,
		"prompt_variant", promptVariant,
	)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runScoreBand(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	section, err := scoring.ParseSection(v.GetString("section"))
	if err != nil {
		return err
	}
	mode, err := scoring.ParseMode(v.GetString("mode"))
	if err != nil {
		return err
	}
	band, err := scoring.NewConverter(mode).BandFor(section, v.GetInt("score"), v.GetInt("total"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), band)
	return err
}

func runScoreAggregate(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	mode, err := scoring.ParseMode(v.GetString("mode"))
	if err != nil {
		return err
	}
	writing, err := scoring.ParseBand(v.GetString("writing"))
	if err != nil {
		return err
	}
	comp, err := scoring.NewConverter(mode).Aggregate(
		v.GetInt("listening"), v.GetInt("listening-total"),
		v.GetInt("reading"), v.GetInt("reading-total"),
		writing,
	)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening: %s\n", comp.Listening)
	fmt.Fprintf(out, "Reading:   %s\n", comp.Reading)
	fmt.Fprintf(out, "Writing:   %s\n", comp.Writing)
	_, err = fmt.Fprintf(out, "Overall:   %s\n", comp.Overall)
	return err
}

func runImport(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	return importFiles(results.NewService(db, scoring.ModeRaw, nil), args)
}

func importFiles(svc *results.Service, paths []string) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if _, _, err := svc.ImportTests(path, data); err != nil {
			return err
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	mode, err := scoring.ParseMode(v.GetString("scoring-mode"))
	if err != nil {
		return err
	}
	db, err := openStore(v)
	if err != nil {
		return err
	}
	defer db.Close()

	export, err := results.NewService(db, mode, nil).Export()
	if err != nil {
		return fmt.Errorf("export results: %w", err)
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
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func seedAdmin(db *store.Store, email, password string) error {
	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		return fmt.Errorf("admin password is required: set --admin-password flag or MOCKCENTER_ADMIN_PASSWORD env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(model.User{
		Email:        email,
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "email", email)
	return nil
}
