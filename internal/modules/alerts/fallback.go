package alerts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aristath/pricesentry/internal/domain"
)

// FallbackWriter keeps undelivered notifications on disk
type FallbackWriter struct {
	dir string
}

// NewFallbackWriter writes into dir, creating it on first use
func NewFallbackWriter(dir string) *FallbackWriter {
	return &FallbackWriter{dir: dir}
}

// FallbackName returns alerts_{session}_{YYYYmmdd_HHMMSS}.html
func FallbackName(session domain.Session, at time.Time) string {
	return fmt.Sprintf("alerts_%s_%s.html", session, at.Format("20060102_150405"))
}

// Write stores html and returns the file path
func (w *FallbackWriter) Write(session domain.Session, html string, at time.Time) (string, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create fallback directory: %w", err)
	}
	path := filepath.Join(w.dir, FallbackName(session, at))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write fallback file: %w", err)
	}
	return path, nil
}
