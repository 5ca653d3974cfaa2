package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"newhome-tracker/models"
)

var csvHeader = []string{
	"id", "plan_name", "company", "community", "type", "price", "sqft", "stories",
	"price_per_sqft", "beds", "baths", "address", "design_number", "last_updated",
}

// CSVExporter writes catalog listings as CSV.
// It is safe for concurrent use.
type CSVExporter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *csv.Writer
}

// NewCSVExporter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVExporter(path string) (*CSVExporter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	e, err := newCSVExporter(f, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return e, nil
}

// NewCSVExporterWriter writes CSV to w instead of a file.
func NewCSVExporterWriter(w io.Writer) (*CSVExporter, error) {
	return newCSVExporter(w, nil)
}

func newCSVExporter(w io.Writer, closer io.Closer) (*CSVExporter, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	cw.Flush()
	return &CSVExporter{closer: closer, writer: cw}, cw.Error()
}

// Write appends one row per listing. Absent numbers are written as empty cells.
func (c *CSVExporter) Write(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range listings {
		row := []string{
			strconv.FormatInt(l.ID, 10),
			l.PlanName,
			l.Company,
			l.Community,
			l.Type,
			formatInt(l.Price),
			formatInt(l.Sqft),
			l.Stories,
			formatFloat(l.PricePerSqft),
			l.Beds,
			l.Baths,
			l.Address,
			l.DesignNumber,
			l.LastUpdated.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVExporter) Close() error {
	c.writer.Flush()
	if c.closer == nil {
		return c.writer.Error()
	}
	return c.closer.Close()
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
