package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/marketplace-harvester/internal/parser"
	"github.com/maltedev/marketplace-harvester/internal/storage"
)

var convertFlags struct {
	namespace string
	file      string
}

var convertCmd = &cobra.Command{
	Use:     "convert",
	Aliases: []string{"convert_from_json_file"},
	Short:   "Import a JSON file of raw detail objects into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp()
		if err != nil {
			return err
		}

		store, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := convertFile(ctx, convertFlags.file, convertFlags.namespace, parser.NewShopeeParser(), store, a.logger)
		if err != nil {
			return err
		}
		fmt.Printf("%d inserted, %d duplicate, %d unmapped\n", res.Inserted, res.Duplicates, res.Unmapped)
		return nil
	},
}

func init() {
	convertCmd.Flags().StringVar(&convertFlags.namespace, "namespace", "hoki", "namespace stamped on every record")
	convertCmd.Flags().StringVar(&convertFlags.file, "file", "result.json", "JSON array of detail data objects")
}

type convertResult struct {
	Inserted   int
	Duplicates int
	Unmapped   int
}

// convertFile maps every element of the JSON array at path and inserts it.
// The file is removed once all elements were handled.
func convertFile(ctx context.Context, path, namespace string, p parser.Parser, store storage.Store, logger *slog.Logger) (convertResult, error) {
	var res convertResult
	log := logger.With("component", "convert", "file", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return res, fmt.Errorf("%s is not a JSON array of objects: %w", path, err)
	}

	for i, raw := range items {
		rec, err := p.MapDetail(raw, namespace)
		if err != nil {
			res.Unmapped++
			log.Warn("skipping unmappable item", "index", i, "error", err)
			continue
		}

		result, err := store.Insert(ctx, rec)
		if err != nil {
			return res, fmt.Errorf("failed to insert item %d: %w", rec.ID, err)
		}
		if result == storage.DuplicateKey {
			res.Duplicates++
			log.Info("duplicate item", "id", rec.ID)
			continue
		}
		res.Inserted++
	}

	if err := os.Remove(path); err != nil {
		return res, fmt.Errorf("failed to remove %s: %w", path, err)
	}
	log.Info("conversion finished", "inserted", res.Inserted, "duplicates", res.Duplicates, "unmapped", res.Unmapped)
	return res, nil
}
