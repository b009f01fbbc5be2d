package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for catalog loading.
var (
	// ErrUnknownStream is returned when a stream has no catalog entry.
	ErrUnknownStream = errors.New("unknown stream in catalog")

	// ErrCatalogEmpty is returned when the catalog declares no streams.
	ErrCatalogEmpty = errors.New("catalog declares no streams")
)

// Catalog holds the per-stream schemas loaded from the catalog file.
//
// The catalog file is YAML of the form:
//
//	streams:
//	  campaigns:
//	    fields:
//	      id: {type: string, selected: true}
//	      name: {type: [string, "null"], selected: true}
type Catalog struct {
	Streams map[string]Schema `yaml:"streams"`
}

// Provider supplies the field-type schema for a stream. It is the seam
// between stream construction and however schemas are stored; Catalog is
// the file-backed implementation.
type Provider interface {
	// Schema returns the schema for the named stream, or ErrUnknownStream.
	Schema(stream string) (Schema, error)
}

// Compile-time assertion that Catalog implements Provider.
var _ Provider = (*Catalog)(nil)

// LoadCatalog reads and parses the catalog file at path.
// A missing or unparseable catalog is a hard error: without schemas no
// stream can be validated, so there is nothing useful to degrade to.
func LoadCatalog(path string, logger *slog.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is from trusted config source
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	logger.Info("Loaded stream catalog",
		slog.String("path", path),
		slog.Int("streams", len(catalog.Streams)),
	)

	return catalog, nil
}

// ParseCatalog parses raw catalog YAML and validates type declarations.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := unmarshalStrict(data, &catalog); err != nil {
		return nil, err
	}

	if len(catalog.Streams) == 0 {
		return nil, ErrCatalogEmpty
	}

	for stream, sch := range catalog.Streams {
		for name, field := range sch.Fields {
			if len(field.Types) == 0 {
				return nil, fmt.Errorf("stream %s field %s: schema missing type", stream, name)
			}
		}
	}

	return &catalog, nil
}

// unmarshalStrict decodes YAML rejecting unknown keys, so a typoed
// catalog entry fails loudly instead of silently deselecting fields.
func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

// Schema returns the schema for the named stream.
func (c *Catalog) Schema(stream string) (Schema, error) {
	sch, ok := c.Streams[stream]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownStream, stream)
	}

	return sch, nil
}

// StreamNames returns the sorted names of all cataloged streams.
func (c *Catalog) StreamNames() []string {
	names := make([]string, 0, len(c.Streams))
	for name := range c.Streams {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
