package ioc

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MalasadaTech/masq-monitor/internal/logger"
)

// Writer serializes an extracted Set into the per-run iocs directory: one
// combined CSV with scan provenance, one single-column CSV per non-empty
// category, and one JSON dump carrying every category.
type Writer struct {
	log logger.Interface
}

// NewWriter creates a Writer.
func NewWriter(log logger.Interface) *Writer {
	if log == nil {
		log = logger.NewNoOp()
	}
	return &Writer{log: log}
}

// WriteAll writes every IOC artifact for name into dir, creating it as
// needed. It returns the paths written.
func (w *Writer) WriteAll(dir, name string, set *Set) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ioc directory: %w", err)
	}

	var written []string

	combined := filepath.Join(dir, name+"_iocs.csv")
	if err := w.writeCombined(combined, set); err != nil {
		return written, err
	}
	written = append(written, combined)

	for _, category := range Categories {
		values := set.Values(category)
		if len(values) == 0 {
			continue
		}
		path := filepath.Join(dir, name+"_"+category+".csv")
		if err := w.writeColumn(path, category, values); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	dump := filepath.Join(dir, name+"_iocs.json")
	if err := w.writeJSON(dump, set); err != nil {
		return written, err
	}
	written = append(written, dump)

	w.log.Info("Wrote IOC artifacts",
		"dir", dir,
		"files", len(written),
		"indicators", set.Count(),
	)
	return written, nil
}

func (w *Writer) writeCombined(path string, set *Set) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create combined ioc file: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"ioc_type", "value", "scan_id"}); err != nil {
		return fmt.Errorf("failed to write ioc header: %w", err)
	}
	for _, row := range set.Rows() {
		if err := cw.Write([]string{row.Type, row.Value, row.ScanID}); err != nil {
			return fmt.Errorf("failed to write ioc row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) writeColumn(path, category string, values []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s ioc file: %w", category, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{category}); err != nil {
		return fmt.Errorf("failed to write %s header: %w", category, err)
	}
	for _, v := range values {
		if err := cw.Write([]string{v}); err != nil {
			return fmt.Errorf("failed to write %s row: %w", category, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *Writer) writeJSON(path string, set *Set) error {
	// Every category appears in the dump, empty ones as [].
	dump := make(map[string][]string, len(Categories))
	for _, category := range Categories {
		values := set.Values(category)
		if values == nil {
			values = []string{}
		}
		dump[category] = values
	}

	data, err := json.MarshalIndent(dump, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ioc dump: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ioc dump: %w", err)
	}
	return nil
}
