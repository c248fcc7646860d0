// migrate applies the embedded schema migrations: go run ./cmd/migrate -direction up
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-auth/pkg/database"
	"github.com/ovaphlow/pitchfork/service-auth/pkg/utilities"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	logCfg, err := utilities.ConfigFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger config:", err)
		os.Exit(1)
	}
	lg, err := utilities.Init(logCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()

	cfg, err := database.ConfigFromEnv()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db, *direction); err != nil {
		sugar.Errorw("migrate failed", "direction", *direction, "err", err)
		os.Exit(1)
	}
	sugar.Infow("migrations complete", "driver", cfg.Driver, "direction", *direction)
}
