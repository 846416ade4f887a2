package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"oproz-billing/internal/config"
	"oproz-billing/internal/domain/model"
	"oproz-billing/internal/domain/ports/repository"
	pg "oproz-billing/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	offerRepo := pg.NewOfferRepo(pool)

	// If plans already exist, do nothing
	plans, err := planRepo.ListActive(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (%s, %s, %d paise)\n", p.Name, p.Tier, p.Duration, p.Price)
		}
		return
	}

	now := time.Now().UTC()
	seedPlans := []*model.SubscriptionPlan{
		{
			ID: uuid.NewString(), Name: "Basic Monthly", Description: "Entry plan for small teams",
			Price: 99_900, Duration: model.PlanDurationMonthly, Tier: model.PlanTierBasic,
			MaxUsers: 5, MaxStorageMB: 5 * 1024, Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), Name: "Standard Monthly", Description: "For growing teams",
			Price: 249_900, Duration: model.PlanDurationMonthly, Tier: model.PlanTierStandard,
			MaxUsers: 25, MaxStorageMB: 50 * 1024, IsPopular: true, Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), Name: "Premium Yearly", Description: "Full feature set, annual billing",
			Price: 2_499_900, Duration: model.PlanDurationYearly, Tier: model.PlanTierPremium,
			MaxUsers: 100, MaxStorageMB: 500 * 1024, Active: true, CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, p := range seedPlans {
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("save plan %s: %v", p.Name, err)
		}
		fmt.Printf("seeded plan %s (%s)\n", p.Name, p.ID)
	}

	minOrder := int64(200_000)
	maxUsage := 500
	seedOffers := []*model.Offer{
		{
			ID: uuid.NewString(), Code: "WELCOME10", Name: "Welcome 10%",
			Description: "10% off the first subscription",
			Type:        model.OfferTypePercentage, Value: decimal.NewFromInt(10),
			StartDate: now, EndDate: now.AddDate(1, 0, 0),
			MaxUsageCount: &maxUsage, Active: true, CreatedAt: now, UpdatedAt: now,
		},
		{
			ID: uuid.NewString(), Code: "FLAT500", Name: "Flat ₹500 off",
			Description: "₹500 off orders of ₹2000 or more",
			Type:        model.OfferTypeFixedAmount, Value: decimal.NewFromInt(500),
			MinOrderAmount: &minOrder,
			StartDate:      now, EndDate: now.AddDate(0, 6, 0),
			Active: true, CreatedAt: now, UpdatedAt: now,
		},
	}
	for _, o := range seedOffers {
		if err := offerRepo.Save(ctx, repository.NoTX, o); err != nil {
			log.Fatalf("save offer %s: %v", o.Code, err)
		}
		fmt.Printf("seeded offer %s (%s)\n", o.Code, o.ID)
	}
}
