package main

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hbomb79/Curator/internal/reconcile"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func renderReport(report *reconcile.Report) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Library %s (%s)", report.LibraryID, report.Kind)
	tw.AppendHeader(table.Row{"Metric", "Value"})

	status := "complete"
	if report.Aborted {
		status = "aborted"
	} else if report.Error != "" {
		status = "failed"
	}

	tw.AppendRows([]table.Row{
		{"Status", status},
		{"Batches", humanize.Comma(int64(report.Batches))},
		{"Processed", humanize.Comma(int64(report.Processed))},
		{"Created", humanize.Comma(int64(report.Created))},
		{"Skipped", humanize.Comma(int64(report.Skipped))},
		{"Failed", humanize.Comma(int64(report.Failed))},
		{"Failure rate", humanize.FtoaWithDigits(report.FailureRate()*100, 1) + "%"},
		{"Entities created", humanize.Comma(report.EntitiesCreated)},
		{"Duration", report.Duration.Round(time.Millisecond).String()},
	})
	if report.Error != "" {
		tw.AppendFooter(table.Row{"Error", report.Error})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})

	return tw.Render()
}
