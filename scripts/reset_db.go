// reset_db clears every ledger and CRM table of a development database and prints a
// session token for a local admin. Run with: go run ./scripts/reset_db.go [-org dev-org]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"travel-backend/internal/auth"
	"travel-backend/internal/config"
	"travel-backend/internal/db"
)

func main() {
	orgID := flag.String("org", "dev-org", "Organization id for the printed admin token")
	flag.Parse()

	fmt.Println("========================================")
	fmt.Println("   Reset Database for Testing")
	fmt.Println("========================================")
	fmt.Println()
	fmt.Println("WARNING: This will DELETE ALL DATA in every organization!")
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  - Delete all bank and cash accounts")
	fmt.Println("  - Delete all ledger entries and transfers")
	fmt.Println("  - Delete all customers and message logs")
	fmt.Println("  - Delete all WhatsApp campaigns and recipients")
	fmt.Println()
	fmt.Print("Type 'yes' to confirm: ")

	var confirm string
	fmt.Scanln(&confirm)

	if confirm != "yes" {
		fmt.Println("Reset cancelled.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}
	if cfg.IsProduction() {
		log.Fatalf("Refusing to reset a production database (environment=%s)\n", cfg.Environment)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}
	defer pool.Close()

	fmt.Println()
	fmt.Println("Resetting database...")

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatalf("Failed to begin transaction: %v\n", err)
	}
	defer tx.Rollback(ctx)

	// children first; CASCADE covers anything added later
	tables := []string{
		"whatsapp_message_logs",
		"whatsapp_campaign_recipients",
		"whatsapp_campaigns",
		"transfers",
		"ledger_entries",
		"customers",
		"bank_accounts",
		"cash_accounts",
	}
	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			log.Fatalf("Failed to truncate %s: %v\n", table, err)
		}
		fmt.Printf("  ✓ Cleared %s\n", table)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatalf("Failed to commit transaction: %v\n", err)
	}

	fmt.Println()
	fmt.Println("Database reset successful!")

	if cfg.JWT.Secret == "" {
		fmt.Println("JWT_SECRET is not set; no token printed.")
		return
	}
	token, err := auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer).GenerateToken("dev-admin", *orgID, auth.RoleAdmin, 24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to sign token: %v\n", err)
	}
	fmt.Println()
	fmt.Printf("Admin token for org %q (valid 24h):\n", *orgID)
	fmt.Println(token)
}
