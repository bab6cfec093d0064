package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/energynexus/nexus-cli/internal/models"
)

// Writer defines the interface for export destinations
type Writer interface {
	Write(readings []models.Reading) error
	Close() error
}

// StreamWriter writes exports to an io.Writer such as stdout
type StreamWriter struct {
	out    io.Writer
	format Format
	mu     sync.Mutex
}

// NewStreamWriter creates a new stream writer
func NewStreamWriter(out io.Writer, format Format) *StreamWriter {
	return &StreamWriter{
		out:    out,
		format: format,
	}
}

// Write encodes readings to the stream
func (w *StreamWriter) Write(readings []models.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Encode(w.out, w.format, readings)
}

// Close is a no-op for stream writer
func (w *StreamWriter) Close() error {
	return nil
}

// FileWriter writes each export to a file. The file is only created when
// there is something to write and is replaced atomically.
type FileWriter struct {
	path   string
	format Format
	mu     sync.Mutex
}

// NewFileWriter creates a new file writer; an empty format is inferred from path
func NewFileWriter(path string, format Format) (*FileWriter, error) {
	if format == "" {
		format = FormatForPath(path)
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	return &FileWriter{
		path:   path,
		format: format,
	}, nil
}

// Path returns the destination file
func (w *FileWriter) Path() string {
	return w.path
}

// Write writes readings to the file
func (w *FileWriter) Write(readings []models.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(readings) == 0 {
		return ErrNoData
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, w.format, readings); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Close is a no-op for file writer
func (w *FileWriter) Close() error {
	return nil
}

// MultiWriter writes to multiple destinations
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a writer that writes to multiple destinations
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write writes to all underlying writers
func (w *MultiWriter) Write(readings []models.Reading) error {
	for _, writer := range w.writers {
		if err := writer.Write(readings); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all underlying writers
func (w *MultiWriter) Close() error {
	for _, writer := range w.writers {
		if err := writer.Close(); err != nil {
			return err
		}
	}
	return nil
}
