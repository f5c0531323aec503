// Package main provides the converter command-line tool for turning JSON log exports into CSV.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"logcsv/internal/config"
	"logcsv/internal/formatter"
	"logcsv/internal/input"
	"logcsv/internal/logger"
	"logcsv/internal/normalizer"
	"logcsv/pkg/metadata"

	"github.com/google/uuid"
	"golang.org/x/term"
)

// Exit codes.
const (
	exitOK    = 0
	exitFatal = 1
	exitEmpty = 2
)

const defaultConfigPath = "configs/converter.yaml"

type options struct {
	inputPath  string
	outputPath string
	start      string
	end        string
	configPath string
	preview    bool
	manifest   bool
	logLevel   string
}

func main() {
	var opts options

	flag.StringVar(&opts.inputPath, "input", "", "Path or http(s) URL of the JSON export (use - for stdin)")
	flag.StringVar(&opts.outputPath, "output", "", "Path to output CSV file (use - for stdout, default from config)")
	flag.StringVar(&opts.start, "start", "", "Start date dd/mm/yyyy (default from config)")
	flag.StringVar(&opts.end, "end", "", "End date dd/mm/yyyy (default from config)")
	flag.StringVar(&opts.configPath, "config", "", "Path to YAML config (default "+defaultConfigPath+" if present)")
	flag.BoolVar(&opts.preview, "preview", false, "Print a preview table instead of writing CSV")
	flag.BoolVar(&opts.manifest, "manifest", false, "Write a manifest next to the CSV file")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	if opts.inputPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: converter -input <export.json> [-output <out.csv>] [-start dd/mm/yyyy] [-end dd/mm/yyyy]")
		flag.PrintDefaults()
		os.Exit(exitFatal)
	}

	os.Exit(run(opts, os.Stdout, os.Stderr))
}

func run(opts options, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return exitFatal
	}

	root := logger.New(cfg.Logging.Level, cfg.Logging.Format, stderr)
	if opts.logLevel != "" {
		root.SetLevel(opts.logLevel)
	}

	runID := uuid.NewString()
	log := root.With("run_id", runID)

	start := valueOr(opts.start, cfg.Defaults.StartDate)
	end := valueOr(opts.end, cfg.Defaults.EndDate)
	outputPath := valueOr(opts.outputPath, cfg.Output.FileName)

	comma, err := cfg.Output.Comma()
	if err != nil {
		log.Error("❌ Invalid output delimiter", "error", err)
		return exitFatal
	}

	// 1. Read
	raw, err := readInput(opts.inputPath, cfg, log)
	if err != nil {
		log.Error("❌ Failed to read input", "path", opts.inputPath, "error", err)
		return exitFatal
	}

	log.Info("📂 Read input", "path", opts.inputPath, "bytes", len(raw))

	// 2. Process
	processStart := time.Now()

	result, err := normalizer.NewProcessor(cfg.Normalizer, log).Process(raw, start, end)
	if err != nil {
		diag := normalizer.Diagnose(err)
		log.Error("❌ Conversion failed", "kind", diag.Kind, "error", err)
		fmt.Fprintln(stderr, diag.String())

		return exitFatal
	}

	if !result.OK() {
		log.Warn("⚠️  No CSV produced", "kind", result.Diagnostic.Kind)
		fmt.Fprintln(stderr, result.Diagnostic.String())

		return exitEmpty
	}

	log.Info("📊 Converted",
		"rows", result.Stats.Kept,
		"columns", result.Stats.Columns,
		"unparseable", result.Stats.Unparseable,
		"out_of_range", result.Stats.OutOfRange,
		"duration", time.Since(processStart))

	// 3. Output
	if opts.preview {
		fmt.Fprint(stdout, formatter.FormatPreview(result.Table, formatter.PreviewOptions{
			MaxRows:  cfg.Output.PreviewRows,
			MaxWidth: terminalWidth(stdout),
		}))

		return exitOK
	}

	data, err := formatter.FormatCSV(result.Table, comma)
	if err != nil {
		log.Error("❌ Failed to encode CSV", "error", err)
		return exitFatal
	}

	if outputPath == "-" {
		if _, err := stdout.Write(data); err != nil {
			log.Error("❌ Failed to write CSV", "error", err)
			return exitFatal
		}

		return exitOK
	}

	if err := writeFile(outputPath, data); err != nil {
		log.Error("❌ Failed to write CSV", "path", outputPath, "error", err)
		return exitFatal
	}

	log.Info("✅ Saved CSV", "path", outputPath, "bytes", len(data))

	if opts.manifest || cfg.Output.WriteManifest {
		m := &metadata.Manifest{
			RunID:     runID,
			Source:    opts.inputPath,
			Output:    outputPath,
			StartDate: start,
			EndDate:   end,
			Columns:   result.Table.Columns,
			Rows:      result.Table.Len(),
		}
		m.Sign(data)

		manifestPath := metadata.PathFor(outputPath)
		if err := m.Save(manifestPath); err != nil {
			log.Error("❌ Failed to write manifest", "path", manifestPath, "error", err)
			return exitFatal
		}

		log.Info("✅ Saved manifest", "path", manifestPath)
	}

	return exitOK
}

// loadConfig reads path, or the default config file when it exists, or falls back
// to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfig(path)
	}

	if _, err := os.Stat(defaultConfigPath); err == nil {
		return config.LoadConfig(defaultConfigPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", defaultConfigPath, err)
	}

	return config.Default(), nil
}

func readInput(source string, cfg *config.Config, log *logger.Logger) ([]byte, error) {
	maxSize := int64(cfg.Server.MaxUploadBytes())

	if input.IsRemote(source) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return input.NewFetcher(cfg.Retry, maxSize, log).Fetch(ctx, source)
	}

	return input.ReadFile(source, maxSize)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0644)
}

// terminalWidth returns the width of w when it is a terminal, otherwise zero.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}

	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}

	return width
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}

	return v
}
