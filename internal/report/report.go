// Package report writes fetch and extraction artifacts to disk.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/repolore/repolore/internal/extract"
	"github.com/repolore/repolore/internal/ghfetch"
)

// Writer writes a repository's artifacts into one output directory.
type Writer struct {
	outputDir string
}

// NewWriter returns a Writer rooted at outputDir.
func NewWriter(outputDir string) *Writer {
	return &Writer{outputDir: outputDir}
}

// WriteCorpus writes the corpus as <owner>-<name>-corpus.json and returns the
// path.
func (w *Writer) WriteCorpus(corpus *ghfetch.Corpus) (string, error) {
	data, err := json.MarshalIndent(corpus, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding corpus: %w", err)
	}
	return w.writeFile(fileBase(corpus.Repo)+"-corpus.json", data)
}

// WriteExtractions writes extraction results as
// <owner>-<name>-extractions.json and returns the path.
func (w *Writer) WriteExtractions(repo ghfetch.Repo, results []extract.Result) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding extractions: %w", err)
	}
	return w.writeFile(fileBase(repo)+"-extractions.json", data)
}

func (w *Writer) writeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", w.outputDir, err)
	}
	path := filepath.Join(w.outputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing file %s: %w", path, err)
	}
	slog.Info("wrote report file", "path", path)
	return path, nil
}

func fileBase(repo ghfetch.Repo) string {
	return repo.Owner + "-" + repo.Name
}
