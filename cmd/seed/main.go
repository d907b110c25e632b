package main

import (
	"log"
	"os"

	"portfolio-commerce-be/internal/model"
	"portfolio-commerce-be/pkg/database"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Seeds a development catalog: a few portfolios across both access
// categories and one bundle grouping the premium ones. Idempotent, keyed
// on name.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	color.Cyan("Seeding catalog...")

	portfolios := []model.Portfolio{
		{
			Name:           "Steady Income",
			Category:       "basic",
			PriceMonthly:   49900,
			PriceQuarterly: 134900,
			PriceYearly:    499900,
			IsActive:       true,
		},
		{
			Name:           "Balanced Growth",
			Category:       "basic",
			PriceMonthly:   69900,
			PriceQuarterly: 188900,
			PriceYearly:    699900,
			IsActive:       true,
		},
		{
			Name:           "Momentum Leaders",
			Category:       "premium",
			PriceMonthly:   99900,
			PriceQuarterly: 269900,
			PriceYearly:    999900,
			IsActive:       true,
		},
		{
			Name:           "Small Cap Compounders",
			Category:       "premium",
			PriceMonthly:   119900,
			PriceQuarterly: 323900,
			PriceYearly:    1199900,
			IsActive:       true,
		},
	}

	for i := range portfolios {
		if err := upsertByName(db, &portfolios[i]); err != nil {
			log.Fatalf("Error: Failed to seed portfolio %q: %v", portfolios[i].Name, err)
		}
	}
	color.Green("Seeded %d portfolios", len(portfolios))

	bundle := model.Bundle{
		Name:           "Premium All Access",
		Category:       "premium",
		PriceMonthly:   179900,
		PriceQuarterly: 485900,
		PriceYearly:    1799900,
		IsActive:       true,
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Where("name = ?", bundle.Name).FirstOrCreate(&bundle).Error; err != nil {
		log.Fatalf("Error: Failed to seed bundle: %v", err)
	}

	// Bundle grants the two premium portfolios.
	for _, p := range portfolios {
		if p.Category != "premium" {
			continue
		}
		item := model.BundleItem{BundleId: bundle.Id, PortfolioId: p.Id}
		err := db.Where("bundle_id = ? AND portfolio_id = ?", bundle.Id, p.Id).
			FirstOrCreate(&item).Error
		if err != nil {
			log.Fatalf("Error: Failed to link bundle item: %v", err)
		}
	}
	color.Green("Seeded bundle %q", bundle.Name)

	color.Green("✅ Success: Catalog seed completed.")
}

func upsertByName(db *gorm.DB, p *model.Portfolio) error {
	return db.Where("name = ?", p.Name).FirstOrCreate(p).Error
}
