package checkpoint

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Store tracks which mailbox message IDs have been fully processed.
// The backing file holds one ID per line and is only ever appended to;
// Load collapses duplicate lines into a set.
type Store struct {
	path string
}

// New creates a checkpoint store backed by the given file path
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the persisted message IDs. A missing file means no history
// and yields an empty set.
func (s *Store) Load() (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	return ids, nil
}

// Mark durably appends a message ID. Marking the same ID twice leaves a
// duplicate line in the file, which Load tolerates.
func (s *Store) Mark(id string) error {
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, id); err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	return nil
}
