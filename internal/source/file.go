// Package source loads billing rows and boundary shapes for the snapshot
// service.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/regionmap/internal/core"
)

// Format identifies the tabular encoding of a billing file.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the format from the file extension.
// Anything other than .xlsx is read as delimited text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// File reads billing rows from a CSV or XLSX export on disk.
// The file is re-read on every load so reloads pick up replacements.
type File struct {
	Path   string
	Sheet  string // Worksheet for XLSX files; empty means the first sheet
	Format Format // Empty means DetectFormat(Path)
}

// NewFile creates a File source with the format taken from the extension.
func NewFile(path, sheet string) *File {
	return &File{Path: path, Sheet: sheet, Format: DetectFormat(path)}
}

func (f *File) Name() string {
	return "file"
}

// LoadRows parses the whole file. Decode problems become warnings; only
// failing to open the file is an error.
func (f *File) LoadRows(ctx context.Context, opts ...core.Option) ([]core.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open billing file: %w", err)
	}
	defer fh.Close()

	format := f.Format
	if format == "" {
		format = DetectFormat(f.Path)
	}

	switch format {
	case FormatXLSX:
		return core.ParseWorkbook(fh, f.Sheet, opts...), nil
	default:
		return core.ParseReader(fh, opts...), nil
	}
}
