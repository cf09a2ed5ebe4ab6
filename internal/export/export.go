package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amishk599/simoradar/internal/model"
)

// Encode writes records as an indented JSON array. Accented text and
// characters such as & are written as is.
func Encode(w io.Writer, records []model.JobRecord) error {
	if records == nil {
		records = []model.JobRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

// WriteFile replaces path with the records document. The file is written
// next to its destination and renamed into place.
func WriteFile(path string, records []model.JobRecord) error {
	var buf bytes.Buffer
	if err := Encode(&buf, records); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("export: rename %s: %w", path, err)
	}
	return nil
}

// FileExporter writes one document per pass. A {run} token in the path is
// replaced with the run id, so history can be kept instead of overwritten.
type FileExporter struct {
	path string
}

func NewFileExporter(path string) *FileExporter {
	return &FileExporter{path: path}
}

// Path returns the file the document of run log lands in.
func (e *FileExporter) Path(log model.RunLog) string {
	return strings.ReplaceAll(e.path, "{run}", log.ID)
}

// Export writes the records of a finished pass.
func (e *FileExporter) Export(log model.RunLog, records []model.JobRecord) error {
	return WriteFile(e.Path(log), records)
}
