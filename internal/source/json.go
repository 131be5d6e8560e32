// Package source loads the raw farm collections from where they are kept:
// a directory of JSON exports or a SQLite database.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"farmviz/internal/engine"
)

// Source produces the typed raw collections. The report lists records
// dropped while decoding; the error is reserved for a source that cannot
// be read at all.
type Source interface {
	Load(ctx context.Context) (engine.Collections, *engine.LoadReport, error)
}

// File names inside a JSON data directory.
const (
	FarmsFile     = "farm.json"
	VarietiesFile = "variety.json"
	CropsFile     = "crop.json"
	LocationsFile = "location.json"
	CountriesFile = "world_countries.json"
)

// JSONDir reads the dashboard's JSON exports from one directory.
type JSONDir struct {
	Dir string
}

func NewJSONDir(dir string) *JSONDir { return &JSONDir{Dir: dir} }

func (s *JSONDir) Load(ctx context.Context) (engine.Collections, *engine.LoadReport, error) {
	var raw engine.RawCollections

	arrays := []struct {
		name string
		dst  *[]json.RawMessage
	}{
		{FarmsFile, &raw.Farms},
		{VarietiesFile, &raw.Varieties},
		{CropsFile, &raw.Crops},
		{LocationsFile, &raw.Locations},
	}
	for _, a := range arrays {
		if err := ctx.Err(); err != nil {
			return engine.Collections{}, nil, err
		}
		if err := s.readJSON(a.name, a.dst); err != nil {
			return engine.Collections{}, nil, err
		}
	}

	var fc struct {
		Features []json.RawMessage `json:"features"`
	}
	if err := s.readJSON(CountriesFile, &fc); err != nil {
		return engine.Collections{}, nil, err
	}
	raw.Countries = fc.Features

	c, report := engine.DecodeJSON(raw)
	return c, report, nil
}

func (s *JSONDir) readJSON(name string, dst any) error {
	path := filepath.Join(s.Dir, name)
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(content, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
