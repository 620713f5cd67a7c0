package grade

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// State is the persisted pipeline configuration: which LUT was active
// and whether log preview was on. Saved after every change so a
// restarted session resumes the previous grade.
type State struct {
	LUTPath    string `toml:"lut_path"`
	LogPreview bool   `toml:"log_preview"`
}

// LoadState reads the state file at path. A missing file is not an
// error; it returns the zero state.
func LoadState(path string) (State, error) {
	var st State
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("grade: read state: %w", err)
	}
	if err := toml.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("grade: parse state: %w", err)
	}
	return st, nil
}

// SaveState writes the state file atomically: marshal, write to a
// temporary file in the same directory, rename over the target.
func SaveState(path string, st State) error {
	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("grade: encode state: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".grade-state-*")
	if err != nil {
		return fmt.Errorf("grade: write state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("grade: write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("grade: write state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("grade: write state: %w", err)
	}
	return nil
}
