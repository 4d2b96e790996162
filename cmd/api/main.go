package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/hushbox/service-api/internal/account"
	accountrepo "github.com/hushbox/service-api/internal/account/repo"
	"github.com/hushbox/service-api/internal/mailbox"
	mailboxrepo "github.com/hushbox/service-api/internal/mailbox/repo"
	"github.com/hushbox/service-api/internal/mailer"
	"github.com/hushbox/service-api/internal/router"
	"github.com/hushbox/service-api/internal/session"
	"github.com/hushbox/service-api/pkg/database"
	"github.com/hushbox/service-api/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting hushbox api")

	// init db; a store that cannot be reached at startup is fatal
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	accounts := accountrepo.NewAccountRepo(sqlxDB)
	if err := accounts.EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure accounts table: %v", err)
	}
	messages := mailboxrepo.NewMessageRepo(sqlxDB)
	if err := messages.EnsureTable(bootCtx); err != nil {
		sugar.Fatalf("ensure messages table: %v", err)
	}

	sessions, err := session.NewManager(session.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("session manager: %v", err)
	}

	verifyMailer := mailer.New(mailer.ConfigFromEnv(), sugar)
	accountSvc := account.NewService(accounts, nil, verifyMailer, sugar)
	mailboxSvc := mailbox.NewService(messages, accounts, sugar)

	accountHandler := account.NewHandler(accountSvc, sessions, sugar)
	mailboxHandler := mailbox.NewHandler(mailboxSvc, sugar)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = "0.0.0.0:8420"
	}

	// mount http server
	handler := router.RegisterRoutes(sugar, accountHandler, mailboxHandler, sessions)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for cleanup
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
