package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maltedev/marketplace-harvester/internal/export"
	"github.com/maltedev/marketplace-harvester/internal/scraper"
)

func renderOutcomes(w io.Writer, outcomes []scraper.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Target", "Identity", "Pages", "Captured", "Duplicates", "Anomalies", "Result", "Duration"})

	var captured, duplicates int
	for _, o := range outcomes {
		t.AppendRow(table.Row{
			o.Target,
			o.Identity,
			pageSpan(o),
			o.Captured,
			o.Duplicates,
			o.Anomalies,
			resultLabel(o),
			o.Duration.Round(time.Second),
		})
		captured += o.Captured
		duplicates += o.Duplicates
	}

	t.AppendFooter(table.Row{"", "", "", captured, duplicates, "", len(outcomes), ""})
	t.Render()
}

func renderExport(w io.Writer, sum export.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Rows", "Skipped", "Duplicates", "Truncated", "Files"})
	t.AppendRow(table.Row{sum.Rows, sum.Skipped, sum.Duplicates, sum.Truncated, len(sum.Files)})
	t.Render()
}

func pageSpan(o scraper.Outcome) string {
	return fmt.Sprintf("%d-%d", o.StartPage, o.LastPage)
}

func resultLabel(o scraper.Outcome) string {
	switch {
	case o.Class != scraper.ClassNone:
		return string(o.Class)
	case o.Finished:
		return "finished"
	case o.Error != "":
		return "error"
	default:
		return "exhausted"
	}
}
