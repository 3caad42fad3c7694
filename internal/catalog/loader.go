package catalog

import (
	"bytes"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"
)

// TradeGlob matches the trade files inside a catalog filesystem.
// Files are read in lexical order, which becomes the declared trade order.
const TradeGlob = "trades/*.yaml"

// Load reads one trade per YAML file from fsys and builds a validated Catalog.
func Load(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, TradeGlob)
	if err != nil {
		return nil, fmt.Errorf("glob trade files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no files match %s", ErrInvalidCatalog, TradeGlob)
	}

	trades := make([]Trade, 0, len(paths))
	for _, p := range paths {
		t, err := readTrade(fsys, p)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	return New(trades)
}

func readTrade(fsys fs.FS, path string) (Trade, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return Trade{}, fmt.Errorf("reading trade file %s: %w", path, err)
	}

	var t Trade
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Trade{}, fmt.Errorf("parsing trade file %s: %w", path, err)
	}
	return t, nil
}
