package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// FilePersister stores one JSONL file per risk under Dir.
type FilePersister struct {
	Dir string
}

// NewFilePersister returns a persister rooted at dir.
func NewFilePersister(dir string) *FilePersister {
	return &FilePersister{Dir: dir}
}

func (p *FilePersister) path(riskID string) string {
	return filepath.Join(p.Dir, url.PathEscape(riskID)+".jsonl")
}

// LoadAll reads every history file. A missing directory is not an error.
func (p *FilePersister) LoadAll(ctx context.Context) (map[string][]Snapshot, error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read history dir: %w", err)
	}

	out := make(map[string][]Snapshot)
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		riskID, err := url.PathUnescape(strings.TrimSuffix(name, ".jsonl"))
		if err != nil {
			log.Warn().Str("file", name).Msg("Skipping history file with undecodable name")
			continue
		}
		snaps, err := readJSONL(filepath.Join(p.Dir, name))
		if err != nil {
			return nil, err
		}
		if len(snaps) > 0 {
			out[riskID] = snaps
		}
	}
	return out, nil
}

func readJSONL(path string) ([]Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	var snaps []Snapshot
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var s Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping invalid JSON line in history")
			continue
		}
		snaps = append(snaps, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}
	return snaps, nil
}

// Save atomically rewrites the history file for riskID.
func (p *FilePersister) Save(_ context.Context, riskID string, snaps []Snapshot) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}

	path := p.path(riskID)
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, s := range snaps {
		if err := encoder.Encode(s); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename history file: %w", err)
	}

	log.Debug().Str("risk", riskID).Int("count", len(snaps)).Msg("Snapshot history saved")
	return nil
}
