package db

import (
	"context"
	"log"
	"time"

	"github.com/facturaIA/receipt-extract-service/internal/models"
	"github.com/facturaIA/receipt-extract-service/internal/weights"
)

// WeightStore is a weights.Provider backed by the detector_outcomes table.
// Reads are served from an in-memory adaptive copy seeded at startup;
// writes go to the counters and asynchronously to PostgreSQL. Persistence
// failures only cost learning, never extraction.
type WeightStore struct {
	inner *weights.Adaptive
}

// NewWeightStore seeds a store from persisted outcome aggregates.
func NewWeightStore(ctx context.Context) (*WeightStore, error) {
	s := &WeightStore{inner: weights.NewAdaptive()}
	if Pool == nil {
		return s, nil
	}

	rows, err := Pool.Query(ctx,
		`SELECT source, total, success, quality_sum FROM detector_outcomes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var source string
		var total, success int
		var qualitySum float64
		if err := rows.Scan(&source, &total, &success, &qualitySum); err != nil {
			return nil, err
		}
		s.inner.Seed(models.Source(source), total, success, qualitySum)
	}
	return s, rows.Err()
}

func (s *WeightStore) GetWeights() map[models.Source]float64 {
	return s.inner.GetWeights()
}

func (s *WeightStore) RecordOutcome(source models.Source, success bool, quality float64) {
	s.inner.RecordOutcome(source, success, quality)
	if Pool == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		successInc := 0
		if success {
			successInc = 1
		}
		_, err := Pool.Exec(ctx,
			`INSERT INTO detector_outcomes (source, total, success, quality_sum)
			 VALUES ($1, 1, $2, $3)
			 ON CONFLICT (source) DO UPDATE SET
			   total = detector_outcomes.total + 1,
			   success = detector_outcomes.success + EXCLUDED.success,
			   quality_sum = detector_outcomes.quality_sum + EXCLUDED.quality_sum`,
			string(source), successInc, quality,
		)
		if err != nil {
			log.Printf("[WeightStore] failed to persist outcome: %v", err)
		}
	}()
}
