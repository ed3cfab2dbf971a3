package main

import (
	"context"
	"fmt"

	"github.com/fjod/go_shop/orders-service/internal/domain"
	"github.com/fjod/go_shop/orders-service/internal/repository"
	"go.uber.org/zap"
)

var demoProducts = []domain.Product{
	{Name: "Mechanical Keyboard", Description: "87-key, brown switches", Price: 2490, Stock: 20},
	{Name: "Wireless Mouse", Description: "2.4GHz, silent click", Price: 690, Stock: 50},
	{Name: "USB-C Hub", Description: "7-in-1, 100W passthrough", Price: 1290, Stock: 15},
	{Name: "Limited Edition Mousepad", Description: "Numbered run", Price: 450, Stock: 3},
}

// seedDemoData fills an empty catalog with a demo user and a few products.
func seedDemoData(ctx context.Context, repo *repository.Repository, log *zap.Logger) error {
	n, err := repo.CountProducts(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("catalog already populated, skipping seed", zap.Int("products", n))
		return nil
	}

	userID, err := repo.CreateUser(ctx, "demo@example.com", "Demo Shopper")
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	for i := range demoProducts {
		if _, err := repo.CreateProduct(ctx, &demoProducts[i]); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	log.Info("seeded demo data", zap.Int64("user_id", userID), zap.Int("products", len(demoProducts)))
	return nil
}
