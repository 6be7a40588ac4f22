package voice

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed voices.yaml
var builtinCatalog []byte

type catalogFile struct {
	Default string    `yaml:"default"`
	Voices  []Profile `yaml:"voices"`
}

func decodeCatalog(data []byte) (catalogFile, error) {
	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return catalogFile{}, fmt.Errorf("decode voice catalog: %w", err)
	}
	return f, nil
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	f, err := decodeCatalog(builtinCatalog)
	if err != nil {
		return nil, err
	}
	if f.Default == "" {
		f.Default = DefaultVoice
	}
	return New(f.Voices, f.Default)
}

// LoadFile returns the builtin catalog with the profiles from the YAML file at
// path merged on top. An empty path returns the builtin catalog.
func LoadFile(path string) (*Catalog, error) {
	base, err := Builtin()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read voice overlay: %w", err)
	}
	f, err := decodeCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return base.Merge(f.Voices, f.Default)
}
