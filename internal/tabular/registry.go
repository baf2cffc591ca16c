package tabular

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Registry maps file extensions to readers.
type Registry struct {
	readers []Reader
}

var globalRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		readers: []Reader{
			NewCSVReader(),
			NewXLSXReader(),
			NewJSONReader(),
		},
	}
}

// GetGlobalRegistry returns the shared registry.
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// FindReader returns the reader for an extension such as "csv" or ".CSV".
func (r *Registry) FindReader(ext string) (Reader, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, p := range r.readers {
		for _, e := range p.Extensions() {
			if e == ext {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("no reader for extension %q", ext)
}

// Read picks a reader by extension and decodes content.
func (r *Registry) Read(ext string, content io.Reader, limit int) (*Table, error) {
	p, err := r.FindReader(ext)
	if err != nil {
		return nil, err
	}
	return p.Read(content, limit)
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }
