// Package export merges stored records with their SKUs into flat CSV rows.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/marketplace-harvester/internal/metrics"
	"github.com/maltedev/marketplace-harvester/internal/models"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

type Config struct {
	Dir       string
	Prefix    string
	BatchSize int
	// Namespace limits the export to one namespace; empty exports all.
	Namespace string
}

type Summary struct {
	Rows       int
	Skipped    int
	Duplicates int
	Truncated  int
	Files      []string
}

type Exporter struct {
	store   storage.Store
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewExporter(store storage.Store, cfg Config, m *metrics.Metrics, logger *slog.Logger) *Exporter {
	if cfg.Prefix == "" {
		cfg.Prefix = "shopee_variants"
	}
	return &Exporter{
		store:   store,
		cfg:     cfg,
		metrics: m,
		logger:  logger.With("component", "exporter"),
	}
}

// Run scans the store once and writes every exportable record.
func (e *Exporter) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	w := NewBatchWriter(e.cfg.Dir, e.cfg.Prefix, e.cfg.BatchSize)
	seen := newDedup()

	err := e.store.Scan(ctx, e.cfg.Namespace, func(rec *models.CanonicalRecord) error {
		if seen.seen(rec) {
			sum.Duplicates++
			e.logger.Debug("skipping duplicate record", "id", rec.ID, "url", rec.URL)
			return nil
		}

		row, truncated, ok := Merge(rec)
		if !ok {
			sum.Skipped++
			e.logger.Info("record has no variations, skipped", "id", rec.ID, "name", rec.Name)
			return nil
		}
		if truncated {
			sum.Truncated++
			e.logger.Warn("record has more SKUs than slots", "id", rec.ID, "skus", len(rec.Models), "slots", models.MaxVariantSlots)
		}

		if err := w.Write(row); err != nil {
			return err
		}
		sum.Rows++
		return nil
	})

	closeErr := w.Close()
	sum.Files = w.Files()
	e.metrics.AddExportRows(sum.Rows)

	if err != nil {
		return sum, fmt.Errorf("failed to export records: %w", err)
	}
	if closeErr != nil {
		return sum, fmt.Errorf("failed to close export file: %w", closeErr)
	}

	e.logger.Info("export finished",
		"rows", sum.Rows,
		"skipped", sum.Skipped,
		"duplicates", sum.Duplicates,
		"files", len(sum.Files),
	)
	return sum, nil
}
