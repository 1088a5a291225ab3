package export

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileDestination writes the export to a local directory. The file only appears under its final
// name once Close succeeds.
type FileDestination struct {
	spool
	finalPath string
	location  string
}

func NewFileDestination(dir, name string) (*FileDestination, error) {
	name = strings.TrimSpace(name)
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid export file name %q", name)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve export directory: %w", err)
	}
	return &FileDestination{
		spool:     spool{dir: abs, pattern: name + ".*.tmp"},
		finalPath: filepath.Join(abs, name),
	}, nil
}

func (d *FileDestination) Close() error {
	if d.closeAborted() {
		return nil
	}
	if err := d.finish(); err != nil {
		if !errors.Is(err, ErrAlreadyClosed) {
			d.closeErr = err
			d.discard()
		}
		return err
	}
	tempPath := d.file.Name()
	if err := d.file.Close(); err != nil {
		_ = os.Remove(tempPath)
		d.closeErr = fmt.Errorf("close export file: %w", err)
		return d.closeErr
	}
	if err := os.Rename(tempPath, d.finalPath); err != nil {
		_ = os.Remove(tempPath)
		d.closeErr = fmt.Errorf("promote export file: %w", err)
		return d.closeErr
	}
	d.location = (&url.URL{Scheme: "file", Path: filepath.ToSlash(d.finalPath)}).String()
	return nil
}

func (d *FileDestination) Location() (string, error) {
	if !d.closed {
		return "", ErrNotClosed
	}
	if d.closeErr != nil {
		return "", d.closeErr
	}
	return d.location, nil
}
