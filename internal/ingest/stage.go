package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// stagedBase is the fixed file name of the staged upload, without extension.
const stagedBase = "students"

var stagedExts = []string{".xlsx", ".xlsm", ".csv"}

// Stager keeps the most recent accepted upload on disk so it can be
// re-ingested at startup or on reload.
type Stager struct {
	dir string
}

func NewStager(dir string) *Stager {
	return &Stager{dir: dir}
}

// Pending is an upload written to a temp file in the staging directory but
// not yet visible to Lookup.
type Pending struct {
	s   *Stager
	tmp string
	dst string
	ext string
}

// Prepare writes data to a temp file next to the staged file. Callers must
// either Commit or Discard the result.
func (s *Stager) Prepare(filename string, data []byte) (*Pending, error) {
	e := ext(filename)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, stagedBase+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, fmt.Errorf("write staged file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, fmt.Errorf("close staged file: %w", err)
	}
	return &Pending{s: s, tmp: tmpName, dst: filepath.Join(s.dir, stagedBase+e), ext: e}, nil
}

// Commit renames the temp file to students<ext> and removes any staged file
// of another format.
func (p *Pending) Commit() (string, error) {
	if err := os.Rename(p.tmp, p.dst); err != nil {
		os.Remove(p.tmp)
		return "", fmt.Errorf("rename staged file: %w", err)
	}
	for _, other := range stagedExts {
		if other == p.ext {
			continue
		}
		if err := os.Remove(filepath.Join(p.s.dir, stagedBase+other)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return p.dst, fmt.Errorf("remove stale staged file: %w", err)
		}
	}
	return p.dst, nil
}

// Discard drops the temp file, leaving the staged file untouched.
func (p *Pending) Discard() {
	os.Remove(p.tmp)
}

// Lookup returns the path of the staged file, or "" when nothing is staged.
func (s *Stager) Lookup() (string, error) {
	for _, e := range stagedExts {
		p := filepath.Join(s.dir, stagedBase+e)
		_, err := os.Stat(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", nil
}
