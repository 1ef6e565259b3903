/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/flamego/csrf"
	"github.com/flamego/flamego"
	"github.com/flamego/session"
	"github.com/flamego/template"
	"github.com/urfave/cli/v3"

	"github.com/humaidq/glycowatch/analysis"
	"github.com/humaidq/glycowatch/charts"
	"github.com/humaidq/glycowatch/chatbot"
	"github.com/humaidq/glycowatch/db"
	"github.com/humaidq/glycowatch/llm"
	"github.com/humaidq/glycowatch/model"
	"github.com/humaidq/glycowatch/routes"
	"github.com/humaidq/glycowatch/static"
	"github.com/humaidq/glycowatch/templates"
	"github.com/humaidq/glycowatch/utils"
)

const (
	sessionCookieName = "glycowatch_session"
	shutdownTimeout   = 10 * time.Second
)

var CmdStart = &cli.Command{
	Name:    "start",
	Aliases: []string{"run"},
	Usage:   "Start the web server",
	Flags: append(storeFlags(),
		&cli.StringFlag{
			Name:    "port",
			Value:   "8080",
			Sources: cli.EnvVars("PORT"),
			Usage:   "the web server port",
		},
		&cli.StringFlag{
			Name:    "base-url",
			Sources: cli.EnvVars("BASE_URL"),
			Usage:   "public origin printed in report links (derived from requests when empty)",
		},
		&cli.StringFlag{
			Name:    "assets-dir",
			Value:   "assets",
			Sources: cli.EnvVars("ASSETS_DIR"),
			Usage:   "directory for generated chart images",
		},
		&cli.StringFlag{
			Name:    "model-path",
			Value:   "artifacts/model.json",
			Sources: cli.EnvVars("MODEL_PATH"),
			Usage:   "classifier artifact (predictions are disabled when it cannot be loaded)",
		},
		&cli.StringFlag{
			Name:    "llm-provider",
			Value:   llm.ProviderOpenAI,
			Sources: cli.EnvVars("LLM_PROVIDER"),
			Usage:   "language model provider (openai or anthropic)",
		},
		&cli.StringFlag{
			Name:    "llm-url",
			Sources: cli.EnvVars("LLM_URL"),
			Usage:   "base URL of the language model API",
		},
		&cli.StringFlag{
			Name:    "llm-model",
			Sources: cli.EnvVars("LLM_MODEL"),
			Usage:   "language model name",
		},
		&cli.StringFlag{
			Name:    "llm-api-key",
			Sources: cli.EnvVars("GROQ_API_KEY", "LLM_API_KEY", "ANTHROPIC_API_KEY"),
			Usage:   "language model API key (AI features are disabled without one)",
		},
		&cli.DurationFlag{
			Name:    "llm-timeout",
			Value:   llm.DefaultTimeout,
			Sources: cli.EnvVars("LLM_TIMEOUT"),
			Usage:   "timeout for one language model call",
		},
		&cli.StringFlag{
			Name:    "knowledge-dir",
			Sources: cli.EnvVars("KNOWLEDGE_DIR"),
			Usage:   "directory of .org, .md and .txt documents used by the assistant",
		},
		&cli.IntFlag{
			Name:    "chat-rate",
			Value:   10,
			Sources: cli.EnvVars("CHAT_RATE_PER_MINUTE"),
			Usage:   "assistant messages allowed per user per minute",
		},
		&cli.StringFlag{
			Name:    "csrf-secret",
			Sources: cli.EnvVars("CSRF_SECRET"),
			Usage:   "secret for CSRF tokens (random per process when empty)",
		},
		&cli.StringFlag{
			Name:    "admin-email",
			Sources: cli.EnvVars("ADMIN_EMAIL"),
			Usage:   "email of the bootstrap admin account",
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Sources: cli.EnvVars("ADMIN_PASSWORD"),
			Usage:   "password of the bootstrap admin account",
		},
		&cli.BoolFlag{
			Name:  "dev",
			Value: false,
			Usage: "enables development mode (templates and static files read from disk)",
		},
	),
	Action: start,
}

// serverOptions are the settings newServer needs beyond the services.
type serverOptions struct {
	CSRFSecret   string
	Dev          bool
	SecureCookie bool
}

func start(ctx context.Context, cmd *cli.Command) error {
	if err := applyLogLevel(cmd); err != nil {
		return err
	}

	if err := applyDisplayZone(cmd); err != nil {
		return err
	}

	if cmd.Int("chat-rate") <= 0 {
		return errInvalidChatRate
	}

	if err := db.Init(ctx, storeConfig(cmd)); err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(ctx, cmd.String("admin-email"), cmd.String("admin-password")); err != nil {
		return err
	}

	svc, err := buildServices(cmd)
	if err != nil {
		return err
	}

	if err := svc.ReloadKnowledge(ctx); err != nil {
		appLogger.Warn("Uploaded knowledge documents unavailable", "error", err)
	}

	f, err := newServer(svc, serverOptions{
		CSRFSecret:   cmd.String("csrf-secret"),
		Dev:          cmd.Bool("dev"),
		SecureCookie: strings.HasPrefix(svc.BaseURL, "https://"),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cmd.String("port")),
		Handler:           f,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Comparisons wait on the language model.
		WriteTimeout: cmd.Duration("llm-timeout") + 30*time.Second,
		ErrorLog:     requestStdLogger,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		appLogger.Info("Starting web server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down web server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func bootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}

	if password == "" {
		return errAdminPasswordRequired
	}

	admin, err := db.EnsureAdmin(ctx, email, password)
	if err != nil {
		return fmt.Errorf("failed to ensure admin account: %w", err)
	}

	appLogger.Info("Admin account ready", "user_id", admin.ID)

	return nil
}

// buildServices loads the optional model, language model and knowledge
// base. Each one that is missing only disables its features.
func buildServices(cmd *cli.Command) (*routes.Services, error) {
	assets := charts.Assets{Root: cmd.String("assets-dir")}

	classifier, err := model.Load(cmd.String("model-path"))
	if err != nil {
		appLogger.Warn("Prediction model not loaded, predictions disabled", "path", cmd.String("model-path"), "error", err)
		classifier = nil
	}

	client, err := llm.New(llm.Config{
		Provider: cmd.String("llm-provider"),
		URL:      cmd.String("llm-url"),
		Model:    cmd.String("llm-model"),
		APIKey:   cmd.String("llm-api-key"),
		Timeout:  cmd.Duration("llm-timeout"),
	})

	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		appLogger.Warn("No language model API key, AI analysis and assistant disabled")

		client = nil
	case err != nil:
		return nil, fmt.Errorf("failed to configure language model: %w", err)
	default:
		appLogger.Info("Language model configured", "provider", cmd.String("llm-provider"))
	}

	knowledge, problems := utils.LoadKnowledgeBase(cmd.String("knowledge-dir"))
	for _, problem := range problems {
		appLogger.Warn("Knowledge document skipped", "error", problem)
	}

	if knowledge.Len() > 0 {
		appLogger.Info("Knowledge base loaded", "documents", knowledge.Len())
	}

	perMinute := cmd.Int("chat-rate")

	return &routes.Services{
		Assets: assets,
		Model:  classifier,
		Assembler: &analysis.Assembler{
			Assets:      assets,
			Synthesizer: &analysis.Synthesizer{Client: client},
		},
		Assistant: &chatbot.Assistant{
			Client:    client,
			Knowledge: knowledge,
			Limiter:   chatbot.NewLimiter(perMinute, max(1, perMinute/3)),
		},
		BaseURL: strings.TrimRight(cmd.String("base-url"), "/"),
	}, nil
}

// newServer wires middleware and routes around svc.
func newServer(svc *routes.Services, opts serverOptions) (*flamego.Flame, error) {
	f := flamego.New()
	f.Use(flamego.Recovery())
	f.Map(svc)

	templateOpts := template.Options{Directory: "templates"}
	staticOpts := flamego.StaticOptions{Directory: "static"}

	if !opts.Dev {
		fs, err := template.EmbedFS(templates.Templates, ".", []string{".html"})
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}

		templateOpts = template.Options{FileSystem: fs}
		staticOpts = flamego.StaticOptions{FileSystem: http.FS(static.Static)}
	}

	f.Use(session.Sessioner(session.Options{
		Initer: db.DocumentSessionIniter(),
		Config: db.DocumentSessionConfig{},
		Cookie: session.CookieOptions{
			Name:     sessionCookieName,
			HTTPOnly: true,
			Secure:   opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		},
		ErrorFunc: func(err error) {
			appLogger.Error("Session error", "error", err)
		},
	}))
	f.Use(csrf.Csrfer(csrf.Options{Secret: opts.CSRFSecret}))
	f.Use(template.Templater(templateOpts))
	f.Use(flamego.Static(staticOpts))
	f.Use(routes.RequestLogger)
	f.Use(routes.NoCacheHeaders())
	f.Use(routes.CSRFInjector())
	f.Use(routes.FlashInjector())
	f.Use(routes.UserContextInjector())

	registerRoutes(f)

	return f, nil
}

func registerRoutes(f *flamego.Flame) {
	// Public routes (no authentication required)
	f.Get("/health", routes.HealthCheck)
	f.Get("/login", routes.LoginForm)
	f.Post("/login", csrf.Validate, routes.Login)
	f.Get("/register", routes.RegisterForm)
	f.Post("/register", csrf.Validate, routes.Register)
	f.Post("/logout", csrf.Validate, routes.Logout)
	f.Post("/predict", routes.Predict)
	f.Get(charts.URLPrefix+charts.ReportsDir+"/{owner}/{file}", routes.ServeChart)

	f.Group("/api/auth", func() {
		f.Post("/register", routes.APIRegister)
		f.Post("/login", routes.APILogin)
		f.Post("/logout", routes.APILogout)
		f.Get("/session", routes.APISession)
	})

	// Protected routes (require authentication)
	f.Group("", func() {
		f.Get("/", routes.HistoryPage)
		f.Post("/history/compare", csrf.Validate, routes.CompareForm)
		f.Get("/history/comparison/{prediction_id}/{analysis_id}", routes.ComparisonPage)

		f.Post("/prediction/analysis", routes.PredictionAnalysis)
		f.Get("/prediction/comparison/{prediction_id}/{analysis_id}/download", routes.DownloadComparisonReport)
		f.Get("/prediction/{id}/report/download", routes.DownloadPredictionReport)
		f.Post("/api/generate_report", routes.GenerateReport)
		f.Get("/api/comprehensive_analysis", routes.ComprehensiveAnalysis)
		f.Get("/api/aggregate_analysis", routes.AggregateAnalysis)

		f.Get("/statistics", routes.Statistics)
		f.Get("/api/user/predictions", routes.UserPredictions)
		f.Get("/api/user/prediction/{id}", routes.UserPrediction)

		f.Post("/api/chatbot", routes.ChatbotMessage)
		f.Get("/api/chatbot/history", routes.ChatbotHistory)
		f.Post("/api/chatbot/clear", routes.ChatbotClear)
	}, routes.RequireAuth)

	// Admin routes
	f.Group("", func() {
		f.Get("/admin", routes.AdminPage)
		f.Post("/admin/users/{user_id}/delete", csrf.Validate, routes.AdminDeleteUserForm)

		f.Get("/api/admin/users", routes.AdminUsers)
		f.Delete("/api/admin/users/{user_id}", routes.AdminDeleteUser)
		f.Get("/api/admin/patient/{user_id}/predictions", routes.AdminPatientPredictions)
		f.Get("/api/admin/stats", routes.AdminStats)
		f.Get("/api/admin/chatbot/documents", routes.AdminKnowledgeDocuments)
		f.Post("/api/admin/chatbot/documents", routes.AdminUploadKnowledgeDocument)
		f.Post("/api/admin/chatbot/upload", routes.AdminUploadKnowledgeDocument)
		f.Delete("/api/admin/chatbot/documents/{doc_id}", routes.AdminDeleteKnowledgeDocument)
	}, routes.RequireAuth, routes.RequireAdmin)
}
