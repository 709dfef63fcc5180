package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/config"
	"github.com/quizora/exam-agent/internal/examapi"
	"github.com/quizora/exam-agent/internal/handler"
	"github.com/quizora/exam-agent/internal/logger"
	"github.com/quizora/exam-agent/internal/router"
	"github.com/quizora/exam-agent/internal/session"
	"github.com/quizora/exam-agent/internal/validator"
	ws "github.com/quizora/exam-agent/internal/websocket"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.AgentPort).
		Str("mode", cfg.GinMode).
		Str("exam_api", cfg.ExamAPIBase).
		Msg("Starting Exam Agent")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	// ─── Exam service client ───────────────────────────────────────────
	apiClient := examapi.NewClient(cfg.ExamAPIBase, cfg.HTTPTimeout, log)

	// ─── Session controller + notice hub ───────────────────────────────
	hub := ws.NewHub(log)
	ctrl := session.New(apiClient, hub, session.Options{
		WarningMarks:          cfg.WarningMarks,
		TabSwitchLimit:        cfg.TabSwitchLimit,
		AutoSubmitGrace:       cfg.AutoSubmitGrace,
		ResumeOnSubmitFailure: cfg.ResumeOnSubmitFailure,
	}, log)

	// ─── Initialize Handlers ───────────────────────────────────────────
	handlers := &router.Handlers{
		Session: handler.NewSessionHandler(ctrl, log),
		WS:      handler.NewWSHandler(ctrl, hub, cfg.AllowedOrigins, log),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.AgentPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.AgentPort).Msg("Bridge listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// Tear down any session still running so the timer goroutine and any
	// pending forced submission are withdrawn.
	if err := ctrl.Abandon(); err == nil {
		log.Warn().Msg("Active session abandoned on shutdown")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
