package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-auth/internal/auth"
	sessionrepo "github.com/ovaphlow/pitchfork/service-auth/internal/auth/repo"
	"github.com/ovaphlow/pitchfork/service-auth/internal/router"
	"github.com/ovaphlow/pitchfork/service-auth/internal/security"
	"github.com/ovaphlow/pitchfork/service-auth/internal/user"
	userrepo "github.com/ovaphlow/pitchfork/service-auth/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

type serverConfig struct {
	Addr         string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8431"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
}

func main() {
	// best-effort: if no .env exists, use the real environment
	_ = godotenv.Load()

	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger config: %v\n", err)
		os.Exit(1)
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-auth")

	var srvCfg serverConfig
	if err := env.Parse(&srvCfg); err != nil {
		sugar.Fatalf("server config: %v", err)
	}
	authCfg, err := auth.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("auth config: %v", err)
	}
	dbCfg, err := database.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("database config: %v", err)
	}

	db, err := database.Connect(dbCfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if dbCfg.AutoMigrate {
		if err := database.Migrate(context.Background(), db, "up"); err != nil {
			sugar.Fatalf("migrate: %v", err)
		}
		sugar.Infow("migrations applied", "driver", dbCfg.Driver)
	}

	ids, err := utilities.NewIDGeneratorFromEnv()
	if err != nil {
		sugar.Fatalf("id generator: %v", err)
	}

	clock := clockwork.NewRealClock()
	secret := []byte(authCfg.JWTSecret)
	hasher := security.NewArgon2Hasher(authCfg.Argon2Params())

	userSvc, err := user.NewUserService(userrepo.NewUserRepo(db, clock), hasher, sugar)
	if err != nil {
		sugar.Fatalf("user service: %v", err)
	}
	minter := security.NewTokenMinter(secret, authCfg.JWTIssuer, authCfg.AccessTTL(), clock, ids)
	authSvc := auth.NewAuthService(userSvc, sessionrepo.NewSessionRepo(db, clock), minter, clock, authCfg.RefreshTTL())

	handler := router.RegisterRoutes(sugar, router.Deps{
		DB:       db,
		Auth:     auth.NewHandler(authSvc, sugar),
		Verifier: security.NewTokenVerifier(secret, authCfg.JWTIssuer, clock),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           handler,
		ReadTimeout:       srvCfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      srvCfg.WriteTimeout,
	}

	go func() {
		sugar.Infow("http server listening", "addr", srvCfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
