package poller

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SeenStore хранит отметки последнего updated_at для каждого PR в JSON-файле.
// Файл пишет только один процесс.
type SeenStore struct {
	path string
}

func NewSeenStore(path string) *SeenStore {
	return &SeenStore{path: path}
}

// Load читает карту отметок. Отсутствующий файл - пустая карта.
func (s *SeenStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read poll state: %w", err)
	}
	seen := map[string]string{}
	if len(data) == 0 {
		return seen, nil
	}
	if err := json.Unmarshal(data, &seen); err != nil {
		return nil, fmt.Errorf("failed to decode poll state: %w", err)
	}
	return seen, nil
}

// Save записывает карту атомарно через временный файл.
func (s *SeenStore) Save(seen map[string]string) error {
	data, err := json.MarshalIndent(seen, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode poll state: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".poll-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write poll state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close poll state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace poll state: %w", err)
	}
	return nil
}
