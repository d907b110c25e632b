package main

import (
	"log"
	"os"

	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

func main() {
	// 1. Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Starting Authoritative GORM Migration...")

	// 3. Pre-Migration: Extensions (Things GORM AutoMigrate doesn't do)
	color.Cyan("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate All Models
	color.Cyan("Step 2: Running AutoMigrate...")

	models := []interface{}{
		&model.User{},
		&model.Portfolio{},
		&model.Bundle{},
		&model.BundleItem{},
		&model.Subscription{},
		&model.PaymentRecord{},
		&model.WebhookEvent{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: reporting views
	color.Cyan("Step 3: Creating Views...")

	postMigrationSQL := []string{
		// View: user_payment_history
		`CREATE OR REPLACE VIEW user_payment_history AS
		 SELECT p.user_id, u.full_name, s.product_type, s.product_id, s.plan_type,
		        p.amount, p.gateway_payment_id, p.status, p.created_at AS payment_date
		 FROM payment_records p
		 JOIN users u ON p.user_id = u.id
		 LEFT JOIN subscriptions s ON p.subscription_id = s.id
		 ORDER BY p.created_at DESC;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	color.Green("✅ Success: Database migration completed successfully via GORM.")
}
