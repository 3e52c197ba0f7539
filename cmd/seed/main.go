// Package main provides a CLI tool for seeding the database with demo data:
// one garage with a full grid of spots, bulk-loaded through the COPY
// protocol inside a managed transaction.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"parkwise/internal/core/id"
	"parkwise/internal/domain/garage"
	"parkwise/internal/domain/spot"
	"parkwise/internal/infrastructure/storage/postgres"
	"parkwise/internal/infrastructure/storage/postgres/parking_repo"
	"parkwise/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dbURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	txManager := postgres.NewManager(pool, postgres.Config{})

	levels := envInt("SEED_LEVELS", 3)
	spotsPerLevel := envInt("SEED_SPOTS_PER_LEVEL", 40)

	g := garage.NewGarage(
		envStr("SEED_GARAGE_CODE", "GRG-001"),
		envStr("SEED_GARAGE_NAME", "Demo Garage"),
		levels,
	)

	if err := seedGarage(ctx, txManager, g, spotsPerLevel); err != nil {
		log.Fatalw("failed to seed garage", "error", err)
	}

	log.Infow("seeding completed successfully",
		"garage_id", g.ID,
		"levels", levels,
		"spots", levels*spotsPerLevel,
	)
}

// seedGarage inserts the garage row and bulk-loads its spots in a single
// managed transaction.
func seedGarage(ctx context.Context, txm *postgres.Manager, g *garage.Garage, spotsPerLevel int) error {
	garageRepo := parking_repo.NewGarageRepo(txm)
	inserter := postgres.NewBatchInserter(txm)

	res, err := txm.Execute(ctx, func(ctx context.Context, _ *postgres.Txn) (any, error) {
		if err := garageRepo.Create(ctx, g); err != nil {
			return nil, err
		}

		columns := []string{
			"id", "garage_id", "level", "number", "type", "status",
			"hourly_rate", "version", "created_at", "updated_at",
		}
		rows := buildSpotRows(g, spotsPerLevel)

		inserted, err := inserter.CopyFromSlice(ctx, "spots", columns, rows)
		if err != nil {
			return nil, fmt.Errorf("bulk insert spots: %w", err)
		}
		return inserted, nil
	}, postgres.DefaultTxOptions())
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	return nil
}

// buildSpotRows lays out a level: mostly standard spots with a few compact,
// EV and handicap spots at the front of each level.
func buildSpotRows(g *garage.Garage, spotsPerLevel int) [][]any {
	now := time.Now().UTC()
	standardRate := decimal.NewFromFloat(2.50)
	evRate := decimal.NewFromFloat(3.00)

	rows := make([][]any, 0, g.Levels*spotsPerLevel)
	for level := 1; level <= g.Levels; level++ {
		for n := 1; n <= spotsPerLevel; n++ {
			spotType := spot.TypeStandard
			rate := standardRate
			switch {
			case n <= 2:
				spotType = spot.TypeHandicap
			case n <= 5:
				spotType = spot.TypeEV
				rate = evRate
			case n <= 10:
				spotType = spot.TypeCompact
			}

			rows = append(rows, []any{
				id.New(),
				g.ID,
				level,
				fmt.Sprintf("%d-%03d", level, n),
				spotType,
				spot.StatusFree,
				rate,
				1,
				now,
				now,
			})
		}
	}
	return rows
}

func envStr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
