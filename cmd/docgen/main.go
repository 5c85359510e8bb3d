// Command docgen merges a CSV file into an HTML template and writes one PDF
// per row, or a single documents.zip, without running the web server.
//
//	docgen -html letter.html -csv clients.csv -out ./pdfs -zip
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/docmerge/internal/config"
	"github.com/JonMunkholm/docmerge/internal/core"
	"github.com/JonMunkholm/docmerge/internal/logging"
	"github.com/JonMunkholm/docmerge/internal/render"
)

func main() {
	if err := run(); err != nil {
		slog.Error("docgen failed", "error", err, "code", core.MapError(err).Code)
		fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		os.Exit(1)
	}
}

func run() error {
	// A .env file may supply RENDER_* defaults; flags still win.
	envErr := loadDotenv()

	var (
		htmlPath = flag.String("html", "", "HTML fragment to merge (required)")
		csvPath  = flag.String("csv", "", "CSV file with one row per document")
		outDir   = flag.String("out", ".", "output directory")
		zipOut   = flag.Bool("zip", false, "write a single "+core.ArchiveName)
		paper    = flag.String("paper", string(core.DefaultPaperSize), "paper size: letter, a4 or legal")
		driver   = flag.String("renderer", envOr("RENDER_DRIVER", "local"), "render backend: local, chrome or http")
		url      = flag.String("render-url", os.Getenv("RENDER_URL"), "render service URL for the http backend")
		timeout  = flag.Duration("timeout", render.DefaultTimeout, "timeout for a single document")
		level    = flag.String("log-level", envOr("LOG_LEVEL", "info"), "log level")
	)
	flag.Parse()

	logging.Setup(*level, "text")
	if envErr != nil {
		slog.Debug("could not load .env file", "error", envErr)
	}

	if *htmlPath == "" {
		flag.Usage()
		return fmt.Errorf("-html is required")
	}
	fragment, err := os.ReadFile(*htmlPath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}

	paperSize, err := core.ParsePaperSize(*paper)
	if err != nil {
		return err
	}

	mode := core.ExportIndividual
	if *zipOut {
		mode = core.ExportZip
	}

	var rows []core.Row
	if *csvPath != "" {
		ds, err := loadDataset(*csvPath)
		if err != nil {
			return err
		}
		slog.Info("dataset loaded",
			"file", ds.Name,
			"rows", ds.Statistics.RowCount,
			"columns", ds.Statistics.ColumnCount,
			"data_type", ds.Statistics.DataType,
		)
		rows = ds.MergeRows()
	}

	renderer, err := render.New(config.RenderConfig{Driver: *driver, URL: *url, Timeout: *timeout})
	if err != nil {
		return err
	}
	defer renderer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter := core.NewExporter(renderer, slog.Default())
	start := time.Now()
	result, err := exporter.Export(ctx, core.ExportRequest{
		HTML:      string(fragment),
		PaperSize: paperSize,
		Rows:      rows,
		Mode:      mode,
	}, core.DirSink{Dir: *outDir}, func(p core.ExportProgress) {
		slog.Debug("progress", "phase", p.Phase, "completed", p.Completed, "total", p.Total)
	})
	if err != nil {
		return err
	}

	for _, f := range result.Files {
		fmt.Println(filepath.Join(*outDir, f))
	}
	slog.Info("export complete", "documents", result.Count, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

func loadDataset(path string) (*core.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return core.IngestCSV(filepath.Base(path), f, 0)
}

// loadDotenv reads .env files into the environment without overriding it.
// A missing file is not an error.
func loadDotenv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
