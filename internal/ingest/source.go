package ingest

import (
	"os"
	"path/filepath"
	"strings"
)

// Item is one raw payload plus where it came from. Err is set when the file
// could not be read.
type Item struct {
	Name string
	Data []byte
	Err  error
}

func isPayloadFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

// ReadDir loads every .json file directly under dir, in name order.
func ReadDir(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, e := range entries {
		if e.IsDir() || !isPayloadFile(e.Name()) {
			continue
		}
		items = append(items, readItem(filepath.Join(dir, e.Name())))
	}
	return items, nil
}

func readItem(path string) Item {
	data, err := os.ReadFile(path)
	return Item{Name: filepath.Base(path), Data: data, Err: err}
}
