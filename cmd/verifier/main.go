// Package main provides the verifier command-line tool for checking an exported CSV against its manifest.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"logcsv/internal/formatter"
	"logcsv/pkg/metadata"
)

func main() {
	inputPath := flag.String("input", "", "Path to exported CSV file")
	manifestPath := flag.String("manifest", "", "Path to manifest (default <input>"+metadata.ManifestSuffix+")")
	delimiter := flag.String("delimiter", ",", "CSV field delimiter")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Usage: verifier -input <cleaned_data.csv> [-manifest <path>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if *manifestPath == "" {
		*manifestPath = metadata.PathFor(*inputPath)
	}

	comma := []rune(*delimiter)
	if len(comma) != 1 {
		fmt.Printf("❌ Delimiter must be a single character, got %q\n", *delimiter)
		os.Exit(1)
	}

	if err := verify(*inputPath, *manifestPath, comma[0], os.Stdout); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

func verify(inputPath, manifestPath string, comma rune, out io.Writer) error {
	content, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	fmt.Fprintf(out, "📂 Reading: %s (%d bytes)\n", inputPath, len(content))

	m, err := metadata.Load(manifestPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "🔍 Manifest: run %s, %s to %s\n", m.RunID, m.StartDate, m.EndDate)

	// 1. Content hash
	if err := m.Verify(content); err != nil {
		return fmt.Errorf("hash check failed: %w", err)
	}

	fmt.Fprintln(out, "✅ Hash matches")

	// 2. Structure
	table, err := formatter.ParseCSV(content, comma)
	if err != nil {
		return fmt.Errorf("CSV parse failed: %w", err)
	}

	if !slices.Equal(table.Columns, m.Columns) {
		return fmt.Errorf("header %v does not match manifest columns %v", table.Columns, m.Columns)
	}

	if err := m.VerifyRows(table.Len()); err != nil {
		return err
	}

	fmt.Fprintf(out, "✅ %d rows, %d columns\n", table.Len(), len(table.Columns))

	return nil
}
