package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"crm-messaging/config"
	"crm-messaging/pkg/database"
)

const usage = `
crm-messaging - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply every .sql file in the migrations directory
  status      Show connection status and row counts of the core tables

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate -migrations ./migrations status
`

var coreTables = []string{"partitions", "records", "template_links", "automation_queue", "send_logs"}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.LoadConfig()
	if _, err := database.Connect(cfg); err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer database.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		runMigrationsUp(*migrationsDir)
	case "status":
		showStatus()
	default:
		fmt.Printf("Unknown command: %s\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(migrationsDir string) {
	log.Println("Running migrations...")
	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Migrations completed")
}

func showStatus() {
	if err := database.HealthCheck(); err != nil {
		log.Fatalf("Database health check failed: %v", err)
	}
	log.Println("Database connection: OK")

	for _, table := range coreTables {
		exists, err := database.TableExists(table)
		if err != nil {
			log.Printf("Error checking table %s: %v", table, err)
			continue
		}
		if !exists {
			log.Printf("Table %-18s missing", table)
			continue
		}
		count, _ := database.GetTableCount(table)
		log.Printf("Table %-18s %d rows", table, count)
	}
}
