// Command migrate applies or rolls back the database schema.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/sonartrack/api/internal/config"
	"github.com/sonartrack/api/pkg/migrations"
)

func main() {
	dir := flag.String("dir", "migrations", "Migrations directory")
	flag.Parse()

	action := flag.Arg(0)
	if action == "" {
		action = "up"
	}

	if err := run(action, *dir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(action, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	runner := migrations.NewRunner(db, dir)
	switch action {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "status":
		return runner.Status(ctx)
	default:
		return fmt.Errorf("unknown action %q (use up, down or status)", action)
	}
}
