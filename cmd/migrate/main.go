// Command migrate applies the Memory Store's schema against a Postgres
// database. It is a standalone operational tool, run ahead of the decision
// engine process starting up.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/inot-trading/core/internal/memory"
)

func main() {
	dbURL := flag.String("db", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	migrationsDir := flag.String("migrations", "migrations", "path to migrations directory")
	command := flag.String("command", "migrate", "migrate or status")
	flag.Parse()

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL not set and -db not provided")
		os.Exit(1)
	}

	m, err := memory.NewMigrator(*dbURL, *migrationsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open migrator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	ctx := context.Background()
	switch *command {
	case "migrate":
		if err := m.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
	case "status":
		entries, err := m.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
			os.Exit(1)
		}
		for _, e := range entries {
			state := "pending"
			if e.Applied {
				state = "applied"
			}
			fmt.Printf("%03d  %-30s  %s\n", e.Version, e.Description, state)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown -command %q (want migrate or status)\n", *command)
		os.Exit(1)
	}
}
