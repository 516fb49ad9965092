package fetch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Dumper writes fetched page bodies to a directory for offline analysis.
// File names are numbered in fetch order: 001-form.html, 002-search.html...
type Dumper struct {
	dir string

	mu  sync.Mutex
	seq int
}

// NewDumper creates dir if needed and returns a Dumper writing into it.
func NewDumper(dir string) (*Dumper, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create dump directory: %w", err)
	}
	return &Dumper{dir: dir}, nil
}

// Dump writes body under the next sequence number.
// Pages can contain personal data, so files are only readable by the owner.
func (d *Dumper) Dump(step string, body []byte) error {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	name := fmt.Sprintf("%03d-%s.html", seq, sanitizeStep(step))
	return os.WriteFile(filepath.Join(d.dir, name), body, 0600)
}

// Dir returns the output directory.
func (d *Dumper) Dir() string {
	return d.dir
}

func sanitizeStep(step string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, step)
}
