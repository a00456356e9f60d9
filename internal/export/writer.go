package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

// CSVWriter writes export rows to one CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates the file and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(models.ExportHeader()); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{file: f, writer: writer}, nil
}

func (cw *CSVWriter) Write(rows []models.ExportRow) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, row := range rows {
		if err := cw.writer.Write(row.Record()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// BatchWriter spreads rows over numbered files of at most size rows each.
// A size of zero writes everything to a single file.
type BatchWriter struct {
	dir     string
	prefix  string
	size    int
	current *CSVWriter
	inFile  int
	files   []string
}

func NewBatchWriter(dir, prefix string, size int) *BatchWriter {
	if size < 0 {
		size = 0
	}
	return &BatchWriter{dir: dir, prefix: prefix, size: size}
}

func (b *BatchWriter) Write(row models.ExportRow) error {
	if b.current == nil || (b.size > 0 && b.inFile >= b.size) {
		if err := b.rotate(); err != nil {
			return err
		}
	}
	if err := b.current.Write([]models.ExportRow{row}); err != nil {
		return err
	}
	b.inFile++
	return nil
}

// Files lists the files written so far.
func (b *BatchWriter) Files() []string {
	return append([]string(nil), b.files...)
}

func (b *BatchWriter) Close() error {
	if b.current == nil {
		return nil
	}
	err := b.current.Close()
	b.current = nil
	return err
}

func (b *BatchWriter) rotate() error {
	if err := b.Close(); err != nil {
		return err
	}

	name := filepath.Join(b.dir, fmt.Sprintf("%s_%03d.csv", b.prefix, len(b.files)+1))
	w, err := NewCSVWriter(name)
	if err != nil {
		return err
	}
	b.current = w
	b.inFile = 0
	b.files = append(b.files, name)
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
