package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource reads documents from a local directory tree. The document ID is
// the slash-separated path relative to the root.
type DirSource struct {
	root string
}

func NewDirSource(root string) (*DirSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open document directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &DirSource{root: root}, nil
}

// List walks the tree and returns every ingestable file, sorted by path.
func (s *DirSource) List(_ context.Context) ([]DocumentRef, error) {
	var refs []DocumentRef
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !ingestableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, DocumentRef{
			ID:   filepath.ToSlash(rel),
			Name: d.Name(),
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk document directory: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// Open returns a reader for one document.
func (s *DirSource) Open(_ context.Context, ref DocumentRef) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(ref.ID)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document %s: %w", ref.ID, err)
	}
	return f, nil
}
