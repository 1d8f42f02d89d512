// Command cutyield lays out rectangular pieces on a single stock sheet with
// a greedy best-fit guillotine heuristic, reports the yield, and exports the
// layout as PDF, QR labels, DXF, Excel or PNG. It can also serve the
// optimizer over HTTP and keeps a SQLite history of runs.
//
// Build:
//
//	go build -o cutyield ./cmd/cutyield
//
// Examples:
//
//	cutyield optimize --pieces parts.txt --pdf layout.pdf
//	cutyield compare --csv parts.csv --chart kerf.html
//	cutyield serve --port 8080
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/piwi3910/CutYield/internal/config"
	"github.com/piwi3910/CutYield/internal/logging"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "cutyield: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command. Negative numeric values and
// empty strings mean "not set on the command line".
type globalFlags struct {
	configFile  *string
	logLevel    *string
	sheetWidth  *float64
	sheetHeight *float64
	kerf        *float64
	historyDB   *string
}

func (g globalFlags) overrides() *config.CLIOverrides {
	o := &config.CLIOverrides{ConfigFile: *g.configFile}
	if *g.logLevel != "" {
		o.LogLevel = g.logLevel
	}
	if *g.sheetWidth >= 0 {
		o.SheetWidth = g.sheetWidth
	}
	if *g.sheetHeight >= 0 {
		o.SheetHeight = g.sheetHeight
	}
	if *g.kerf >= 0 {
		o.Kerf = g.kerf
	}
	if *g.historyDB != "" {
		o.HistoryDB = g.historyDB
	}
	return o
}

// env is what every command runs with once flags and configuration are resolved.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	out    io.Writer
}

func run(args []string, out io.Writer) error {
	kp := kingpin.New("cutyield", "Single-sheet cutting layout optimizer")
	kp.UsageWriter(out)
	kp.ErrorWriter(out)

	g := globalFlags{
		configFile:  kp.Flag("config", "Path to YAML configuration file").String(),
		logLevel:    kp.Flag("log-level", "Log level (debug, info, warn, error)").String(),
		sheetWidth:  kp.Flag("sheet-width", "Sheet width in mm").Default("-1").Float64(),
		sheetHeight: kp.Flag("sheet-height", "Sheet height in mm").Default("-1").Float64(),
		kerf:        kp.Flag("kerf", "Blade width in mm").Default("-1").Float64(),
		historyDB:   kp.Flag("history-db", "Run history database path ('none' disables recording)").String(),
	}

	optimizeCmd := kp.Command("optimize", "Lay out a piece list on one sheet")
	optimizeIn := registerInputFlags(optimizeCmd)
	optimizeOut := outputFlags{
		pdf:     optimizeCmd.Flag("pdf", "Write the layout sheet to a PDF file").String(),
		labels:  optimizeCmd.Flag("labels", "Write QR piece labels to a PDF file").String(),
		dxf:     optimizeCmd.Flag("dxf", "Write the layout to a DXF drawing").String(),
		png:     optimizeCmd.Flag("png", "Write a PNG preview").String(),
		pngW:    optimizeCmd.Flag("png-width", "PNG preview width in pixels").Default("1200").Int(),
		xlsx:    optimizeCmd.Flag("xlsx-out", "Write the cut list to an Excel workbook").String(),
		saveJob: optimizeCmd.Flag("save-job", "Save the resolved job as JSON").String(),
	}

	compareCmd := kp.Command("compare", "Compare the layout across kerf variants")
	compareIn := registerInputFlags(compareCmd)
	chartPath := compareCmd.Flag("chart", "Write an HTML bar chart of the comparison").String()

	serveCmd := kp.Command("serve", "Serve the optimizer over HTTP")
	port := serveCmd.Flag("port", "HTTP port exposed by the service").String()
	rateLimitRPS := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurst := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	historyCmd := kp.Command("history", "Inspect recorded runs")
	historyListCmd := historyCmd.Command("list", "List recent runs")
	historyLimit := historyListCmd.Flag("limit", "Maximum number of runs to list").Default("20").Int()
	historyExportCmd := historyCmd.Command("export", "Export recorded runs to a JSON backup")
	historyExportPath := historyExportCmd.Arg("path", "Backup file to write").Required().String()
	historyExportLimit := historyExportCmd.Flag("limit", "Maximum number of runs to export").Default("1000").Int()
	historyImportCmd := historyCmd.Command("import", "Restore runs from a JSON backup")
	historyImportPath := historyImportCmd.Arg("path", "Backup file to read").Required().ExistingFile()

	command, err := kp.Parse(args)
	if err != nil {
		return err
	}

	overrides := g.overrides()
	if command == serveCmd.FullCommand() {
		if *port != "" {
			overrides.Port = port
		}
		if *rateLimitRPS >= 0 {
			overrides.RateLimitRPS = rateLimitRPS
		}
		if *rateLimitBurst >= 0 {
			overrides.RateLimitBurst = rateLimitBurst
		}
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	e := env{cfg: cfg, logger: logger, out: out}

	switch command {
	case optimizeCmd.FullCommand():
		return e.runOptimize(optimizeIn, optimizeOut)
	case compareCmd.FullCommand():
		return e.runCompare(compareIn, *chartPath)
	case serveCmd.FullCommand():
		return e.runServe()
	case historyListCmd.FullCommand():
		return e.runHistoryList(*historyLimit)
	case historyExportCmd.FullCommand():
		return e.runHistoryExport(*historyExportPath, *historyExportLimit)
	case historyImportCmd.FullCommand():
		return e.runHistoryImport(*historyImportPath)
	}
	return fmt.Errorf("unknown command %q", command)
}
