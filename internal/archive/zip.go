// Package archive unpacks zip bundles of invoice documents.
package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/finlens-ai/invoice-engine/internal/domain"
)

// validExtensions are the document types worth sending to the parsing service.
var validExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Entry is one extracted document from a zip bundle.
type Entry struct {
	Name    string
	Content []byte
}

// IsZip reports whether a filename looks like a zip bundle.
func IsZip(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".zip")
}

// ExtractDocuments unpacks a zip archive in memory and returns only the
// entries with a supported document extension, in archive order. Directory
// entries and unrelated files (macOS metadata, spreadsheets, etc.) are
// skipped silently.
func ExtractDocuments(data []byte) ([]Entry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, domain.IOError("failed to open zip archive", err)
	}

	var entries []Entry
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		if strings.Contains(file.Name, "__MACOSX/") {
			continue
		}
		name := path.Base(file.Name)
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !validExtensions[strings.ToLower(path.Ext(name))] {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, domain.IOError("failed to open zip entry "+file.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, domain.IOError("failed to read zip entry "+file.Name, err)
		}
		entries = append(entries, Entry{Name: name, Content: content})
	}
	return entries, nil
}
