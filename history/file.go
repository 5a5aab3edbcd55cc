// history/file.go
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps each key's state in a JSON file under a root directory.
// With an empty root the key itself is the file path.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore returns a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, now: time.Now}
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) (string, error) {
	if s.dir == "" {
		if key == "" {
			return "", errors.New("history: empty store key")
		}
		return key, nil
	}
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("history: invalid store key %q", key)
	}
	if filepath.Ext(key) != ".json" {
		key += ".json"
	}
	return filepath.Join(s.dir, key), nil
}

// Load reads the state for key. A file that cannot be read or decoded is
// moved aside to <file>.unreadable-<unix> or <file>.corrupt-<unix> so the
// next Save does not overwrite it.
func (s *FileStore) Load(key string) (State, error) {
	return s.load(key, true)
}

// Inspect is Load without moving damaged files.
func (s *FileStore) Inspect(key string) (State, error) {
	return s.load(key, false)
}

func (s *FileStore) load(key string, repair bool) (State, error) {
	path, err := s.Path(key)
	if err != nil {
		return Empty(), fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Empty(), nil
	}
	if err != nil {
		return Empty(), s.damaged(path, ErrUnreadable, "unreadable", err, repair)
	}

	st, err := decodeState(data)
	if err != nil {
		return Empty(), s.damaged(path, ErrCorrupt, "corrupt", err, repair)
	}
	return st, nil
}

func (s *FileStore) damaged(path string, kind error, suffix string, cause error, repair bool) error {
	if !repair {
		return fmt.Errorf("%w: %s: %v", kind, path, cause)
	}
	aside := fmt.Sprintf("%s.%s-%d", path, suffix, s.now().Unix())
	if err := os.Rename(path, aside); err != nil {
		return fmt.Errorf("%w: %s: %v (move aside: %v)", kind, path, cause, err)
	}
	return fmt.Errorf("%w: %s: %v (moved to %s)", kind, path, cause, aside)
}

// Save writes state for key through a temp file and rename, creating the
// directory if needed. It refuses to replace a file it cannot decode or one
// holding more runs than st.
func (s *FileStore) Save(key string, st State) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := checkReplace(path, st); err != nil {
		return err
	}
	if st.History == nil {
		st.History = []RunRecord{}
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp history: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func checkReplace(path string, st State) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: refusing to replace unreadable %s: %w", path, err)
	}
	old, err := decodeState(data)
	if err != nil {
		return fmt.Errorf("history: refusing to replace corrupt %s: %w", path, err)
	}
	if len(old.History) > len(st.History) {
		return fmt.Errorf("history: refusing to shrink %s from %d to %d runs", path, len(old.History), len(st.History))
	}
	return nil
}

func decodeState(data []byte) (State, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, err
	}
	if st.History == nil {
		st.History = []RunRecord{}
	}
	for i, r := range st.History {
		if r.ComplianceScore < 0 || r.ComplianceScore > 1 {
			return State{}, fmt.Errorf("run %d: compliance_score %v out of range", i, r.ComplianceScore)
		}
	}
	return st, nil
}
