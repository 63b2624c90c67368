package emit

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Files is an ordered set of generated files keyed by slash-separated
// relative path.
type Files struct {
	order   []string
	content map[string][]byte
}

func newFiles() *Files {
	return &Files{content: make(map[string][]byte)}
}

func (f *Files) add(p string, data []byte) {
	p = path.Clean(p)
	if _, ok := f.content[p]; !ok {
		f.order = append(f.order, p)
	}
	f.content[p] = data
}

// Paths returns the file paths in emission order.
func (f *Files) Paths() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Sorted returns the file paths in lexical order.
func (f *Files) Sorted() []string {
	out := f.Paths()
	sort.Strings(out)
	return out
}

// Get returns the content of one file.
func (f *Files) Get(p string) ([]byte, bool) {
	b, ok := f.content[path.Clean(p)]
	return b, ok
}

// Len returns the number of files.
func (f *Files) Len() int {
	return len(f.order)
}

// WriteDir writes every file below dir, creating directories as needed.
// Existing files are overwritten; files not in the set are left alone.
func (f *Files) WriteDir(dir string) error {
	for _, p := range f.order {
		dst := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return fmt.Errorf("create directory for %s: %w", p, err)
		}
		if err := os.WriteFile(dst, f.content[p], 0o644); err != nil { //nolint:gosec // generated project files are meant to be shared
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
