// Package metadata records and verifies what a conversion run produced.
package metadata

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestSuffix is appended to an output path to name its manifest.
const ManifestSuffix = ".manifest.yaml"

// Manifest verification errors.
var (
	ErrNoHashFound  = errors.New("no hash found in manifest")
	ErrHashMismatch = errors.New("hash mismatch")
	ErrRowMismatch  = errors.New("row count mismatch")
)

// Manifest describes one exported CSV file.
type Manifest struct {
	CreatedAt time.Time `yaml:"created_at"`
	RunID     string    `yaml:"run_id"`
	Source    string    `yaml:"source"`
	Output    string    `yaml:"output"`
	StartDate string    `yaml:"start_date"`
	EndDate   string    `yaml:"end_date"`
	Hash      string    `yaml:"sha256"`
	Columns   []string  `yaml:"columns"`
	Rows      int       `yaml:"rows"`
}

// CalculateHash computes the SHA-256 hash of content.
func CalculateHash(content []byte) string {
	hash := sha256.Sum256(content)

	return hex.EncodeToString(hash[:])
}

// Sign fills in the hash and creation time for content.
func (m *Manifest) Sign(content []byte) {
	m.Hash = CalculateHash(content)
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
}

// Verify checks that content matches the manifest hash.
func (m *Manifest) Verify(content []byte) error {
	if m.Hash == "" {
		return ErrNoHashFound
	}

	calculated := CalculateHash(content)
	if calculated != m.Hash {
		return fmt.Errorf("%w: expected %s, got %s", ErrHashMismatch, m.Hash, calculated)
	}

	return nil
}

// VerifyRows checks the manifest row count against a parsed row count.
func (m *Manifest) VerifyRows(rows int) error {
	if rows != m.Rows {
		return fmt.Errorf("%w: expected %d, got %d", ErrRowMismatch, m.Rows, rows)
	}

	return nil
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

// Load reads a manifest written by Save.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	return &m, nil
}

// PathFor returns the manifest path that accompanies output.
func PathFor(output string) string {
	return output + ManifestSuffix
}
