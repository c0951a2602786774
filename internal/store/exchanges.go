package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Exchange is one request/response pair with the fact-check service,
// kept on disk for debugging.
type Exchange struct {
	Timestamp time.Time       `json:"timestamp"`
	Endpoint  string          `json:"endpoint"`
	ItemID    string          `json:"post_id,omitempty"`
	Request   json.RawMessage `json:"request"`
	Status    int             `json:"status,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Exchanges writes exchanges as timestamped JSON files under one directory.
type Exchanges struct {
	dir string
}

// NewExchanges returns a cache rooted at dir. The directory is created on
// first write.
func NewExchanges(dir string) *Exchanges {
	return &Exchanges{dir: dir}
}

// Dir returns the cache directory.
func (x *Exchanges) Dir() string { return x.dir }

// Save serializes an exchange to a timestamped file and returns its path.
func (x *Exchanges) Save(e Exchange) (string, error) {
	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return "", fmt.Errorf("create exchange cache dir: %w", err)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	// dashes instead of colons for filesystem compatibility
	name := e.Timestamp.Format("2006-01-02T15-04-05.000")
	if e.ItemID != "" {
		name += "_" + e.ItemID
	}
	path := filepath.Join(x.dir, name+".json")

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal exchange: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write exchange: %w", err)
	}
	return path, nil
}

// List returns the cached exchange files, oldest first.
func (x *Exchanges) List() ([]string, error) {
	entries, err := os.ReadDir(x.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, filepath.Join(x.dir, entry.Name()))
		}
	}
	// names start with the timestamp so lexical order is chronological
	sort.Strings(files)
	return files, nil
}

// Prune deletes exchange files last modified before cutoff and returns how
// many were removed.
func (x *Exchanges) Prune(cutoff time.Time) (int, error) {
	files, err := x.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return removed, fmt.Errorf("remove %s: %w", filepath.Base(path), err)
			}
			removed++
		}
	}
	return removed, nil
}
