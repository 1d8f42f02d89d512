package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/piwi3910/CutYield/internal/engine"
	"github.com/piwi3910/CutYield/internal/export"
	"github.com/piwi3910/CutYield/internal/importer"
	"github.com/piwi3910/CutYield/internal/model"
	"github.com/piwi3910/CutYield/internal/project"
)

// inputFlags select where the piece list comes from. Exactly one is set.
type inputFlags struct {
	pieces *string
	csv    *string
	xlsx   *string
	job    *string
}

func registerInputFlags(cmd *kingpin.CmdClause) inputFlags {
	return inputFlags{
		pieces: cmd.Flag("pieces", "Piece list text file (alternating quantity and WxH lines)").String(),
		csv:    cmd.Flag("csv", "Piece list CSV file").String(),
		xlsx:   cmd.Flag("xlsx", "Piece list Excel workbook").String(),
		job:    cmd.Flag("job", "Saved job JSON file (carries its own sheet and kerf)").String(),
	}
}

type outputFlags struct {
	pdf     *string
	labels  *string
	dxf     *string
	png     *string
	pngW    *int
	xlsx    *string
	saveJob *string
}

// loadJob resolves the input flags into a validated job. Piece lists read
// from text, CSV or Excel use the configured sheet and kerf.
func (e env) loadJob(in inputFlags) (model.Job, error) {
	var sources []string
	for _, s := range []*string{in.pieces, in.csv, in.xlsx, in.job} {
		if *s != "" {
			sources = append(sources, *s)
		}
	}
	if len(sources) != 1 {
		return model.Job{}, errors.New("exactly one of --pieces, --csv, --xlsx or --job is required")
	}

	if *in.job != "" {
		return project.LoadJob(*in.job)
	}

	job := model.NewJob()
	job.Name = strings.TrimSuffix(filepath.Base(sources[0]), filepath.Ext(sources[0]))
	job.Sheet = e.cfg.Sheet()
	job.Kerf = e.cfg.Kerf

	switch {
	case *in.pieces != "":
		f, err := os.Open(*in.pieces)
		if err != nil {
			return model.Job{}, fmt.Errorf("failed to open piece list: %w", err)
		}
		defer f.Close()
		specs, err := importer.ParsePieceList(f)
		if err != nil {
			return model.Job{}, fmt.Errorf("%s: %w", *in.pieces, err)
		}
		job.Pieces = specs
	case *in.csv != "":
		specs, err := e.fromImport(*in.csv, importer.ImportCSV(*in.csv))
		if err != nil {
			return model.Job{}, err
		}
		job.Pieces = specs
	default:
		specs, err := e.fromImport(*in.xlsx, importer.ImportExcel(*in.xlsx))
		if err != nil {
			return model.Job{}, err
		}
		job.Pieces = specs
	}

	if err := job.Validate(); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// fromImport logs import problems and keeps the rows that parsed. An import
// that yields nothing is an error.
func (e env) fromImport(path string, res importer.ImportResult) ([]model.PieceSpec, error) {
	for _, w := range res.Warnings {
		e.logger.Debug("import warning", zap.String("file", path), zap.String("warning", w))
	}
	for _, msg := range res.Errors {
		e.logger.Warn("skipped row", zap.String("file", path), zap.String("error", msg))
	}
	if len(res.Pieces) == 0 {
		if len(res.Errors) > 0 {
			return nil, fmt.Errorf("%s: %s", path, res.Errors[0])
		}
		return nil, fmt.Errorf("%s: %w", path, model.ErrNoPieces)
	}
	return res.Pieces, nil
}

func (e env) runOptimize(in inputFlags, out outputFlags) error {
	job, err := e.loadJob(in)
	if err != nil {
		return err
	}

	pieces := model.ExpandPieces(job.Pieces)
	result := engine.New(model.CutSettings{Kerf: job.Kerf}).Optimize(job.Sheet, pieces)

	e.logger.Info("optimization completed",
		zap.String("job", job.Name),
		zap.Int("requested", result.RequestedCount()),
		zap.Int("placed", len(result.Placements)),
		zap.Float64("utilization", result.UtilizationPercent),
	)

	e.printResult(result)
	e.recordRun(result)

	exports := []struct {
		path  string
		write func(string) error
	}{
		{*out.pdf, func(p string) error { return export.ExportPDF(p, result) }},
		{*out.labels, func(p string) error { return export.ExportLabels(p, result) }},
		{*out.dxf, func(p string) error { return export.ExportDXF(p, result) }},
		{*out.png, func(p string) error { return writePNG(p, result, *out.pngW) }},
		{*out.xlsx, func(p string) error { return export.ExportCutList(p, result) }},
		{*out.saveJob, func(p string) error { return project.SaveJob(p, job) }},
	}
	for _, x := range exports {
		if x.path == "" {
			continue
		}
		if err := x.write(x.path); err != nil {
			return err
		}
		e.logger.Info("wrote file", zap.String("path", x.path))
	}
	return nil
}

func writePNG(path string, result model.PackingResult, widthPx int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create PNG file: %w", err)
	}
	if err := export.RenderPNG(f, result, widthPx); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printResult writes the headline, the legend and the missing-pieces block.
func (e env) printResult(result model.PackingResult) {
	fmt.Fprintln(e.out, result.Headline())

	if legend := model.Legend(result); len(legend) > 0 {
		fmt.Fprintln(e.out)
		tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "Pc\tDim.")
		for _, row := range legend {
			fmt.Fprintf(tw, "%s\t%s\n", row.Label, row.Dimensions)
		}
		tw.Flush()
	}

	groups := result.UnplacedSummary()
	if len(groups) == 0 {
		return
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, g.String())
	}
	fmt.Fprintln(e.out)
	fmt.Fprintf(e.out, "Does not fit: %s\n", strings.Join(parts, ", "))

	all := make([]model.Piece, 0, result.RequestedCount())
	for _, p := range result.Placements {
		all = append(all, p.Piece)
	}
	for _, u := range result.Unplaced {
		all = append(all, u.Piece)
	}
	estimate := model.EstimateSheets(all, result.Sheet, result.Kerf)
	fmt.Fprintf(e.out, "Estimated sheets for the full list: at least %d\n", estimate.SheetsNeededMin)
}

// recordRun stores the run in the history database. Failures are logged
// and do not fail the command.
func (e env) recordRun(result model.PackingResult) {
	if !e.cfg.HistoryEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := project.OpenHistory(ctx, e.cfg.HistoryDB)
	if err != nil {
		e.logger.Warn("history unavailable", zap.String("path", e.cfg.HistoryDB), zap.Error(err))
		return
	}
	defer store.Close()

	run := project.NewRun(result)
	if err := store.Record(ctx, run); err != nil {
		e.logger.Warn("failed to record run", zap.String("run_id", run.ID), zap.Error(err))
		return
	}
	e.logger.Debug("run recorded", zap.String("run_id", run.ID))
}

func (e env) runCompare(in inputFlags, chartPath string) error {
	job, err := e.loadJob(in)
	if err != nil {
		return err
	}

	pieces := model.ExpandPieces(job.Pieces)
	comparisons := engine.CompareScenarios(engine.BuildKerfScenarios(model.CutSettings{Kerf: job.Kerf}), job.Sheet, pieces)

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Scenario\tKerf\tPlaced\tUnplaced\tUtilization\tWaste")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f%%\t%.2f%%\n",
			c.Scenario.Name, model.FormatDim(c.Scenario.Settings.Kerf),
			c.PlacedCount, c.UnplacedCount, c.Utilization, c.WastePercent)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if chartPath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(chartPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(chartPath)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	if err := export.ExportComparisonChart(f, comparisons); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.logger.Info("wrote file", zap.String("path", chartPath))
	return nil
}

func (e env) openHistory(ctx context.Context) (*project.HistoryStore, error) {
	if !e.cfg.HistoryEnabled() {
		return nil, errors.New("run history is disabled")
	}
	return project.OpenHistory(ctx, e.cfg.HistoryDB)
}

func (e env) runHistoryList(limit int) error {
	ctx := context.Background()
	store, err := e.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(e.out, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDate\tSheet\tKerf\tPlaced\tYield\tDoes not fit")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%.2f%%\t%s\n",
			r.ID[:8], r.CreatedAt.Local().Format("2006-01-02 15:04"),
			model.FormatSize(r.SheetWidth, r.SheetHeight), model.FormatDim(r.Kerf),
			r.Placed, r.Requested, r.Utilization, r.UnplacedSummary)
	}
	return tw.Flush()
}

func (e env) runHistoryExport(path string, limit int) error {
	ctx := context.Background()
	store, err := e.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if err := project.ExportHistory(path, runs); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Exported %d runs to %s\n", len(runs), path)
	return nil
}

// runHistoryImport records every run of a backup. Runs whose ID is already
// in the history are skipped.
func (e env) runHistoryImport(path string) error {
	backup, err := project.ImportHistory(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := e.openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	imported, skipped := 0, 0
	for _, run := range backup.Runs {
		_, err := store.Get(ctx, run.ID)
		if err == nil {
			skipped++
			continue
		}
		if !errors.Is(err, project.ErrRunNotFound) {
			return err
		}
		if err := store.Record(ctx, run); err != nil {
			return err
		}
		imported++
	}

	e.logger.Info("history imported", zap.String("path", path), zap.Int("imported", imported), zap.Int("skipped", skipped))
	fmt.Fprintf(e.out, "Imported %d runs from %s (%d already present)\n", imported, path, skipped)
	return nil
}
