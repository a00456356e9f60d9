package category

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

var header = []string{"type", "parent_name", "name", "link", "status"}

// WriteCSV replaces path with the rows, header first.
func WriteCSV(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create category csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write category header: %w", err)
	}
	for _, r := range rows {
		if err := w.Write([]string{r.Type, r.ParentName, r.Name, r.Link, r.Status}); err != nil {
			return fmt.Errorf("failed to write category row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush category csv: %w", err)
	}
	return f.Close()
}

// Generate loads the tree, fetches facets and writes the CSV. It returns the
// number of rows written.
func Generate(ctx context.Context, client *Client, treePath, outPath string) (int, error) {
	tree, err := LoadTree(treePath)
	if err != nil {
		return 0, err
	}

	facets, err := client.Facets(ctx)
	if err != nil {
		return 0, err
	}

	rows := Build(tree, facets)
	if err := WriteCSV(outPath, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
