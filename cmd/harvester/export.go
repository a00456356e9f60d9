package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/maltedev/marketplace-harvester/internal/export"
)

var exportFlags struct {
	namespace string
	dir       string
	size      int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored records with variations to batched CSV files",
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

		cfg := export.Config{
			Dir:       a.cfg.Files.ExportDir,
			Prefix:    a.cfg.Files.ExportPrefix,
			BatchSize: a.cfg.Files.ExportSize,
			Namespace: exportFlags.namespace,
		}
		if cmd.Flags().Changed("dir") {
			cfg.Dir = exportFlags.dir
		}
		if cmd.Flags().Changed("size") {
			cfg.BatchSize = exportFlags.size
		}

		sum, err := export.NewExporter(store, cfg, a.metrics, a.logger).Run(ctx)
		if err != nil {
			return err
		}
		renderExport(os.Stdout, sum)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.namespace, "namespace", "", "export only this namespace")
	exportCmd.Flags().StringVar(&exportFlags.dir, "dir", "", "output directory (default EXPORT_DIR)")
	exportCmd.Flags().IntVar(&exportFlags.size, "size", 0, "rows per file, 0 for a single file (default EXPORT_SIZE)")
}
