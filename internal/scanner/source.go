package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/ni/internal/catalog"
	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/types"
)

// FileSource loads artifact collections from a directory tree. Code kinds
// are resolved against a Catalog of compiled modules; views are read as
// raw text. FS may be os.DirFS for a deployment directory or an embed.FS
// for a binary that carries its own tree.
type FileSource struct {
	// FS is rooted at the application root
	FS fs.FS
	// Root is the application root as reported in template paths
	Root string
	// Catalog resolves code files to module factories
	Catalog *catalog.Catalog
	// Limit caps concurrent loads per directory
	Limit int
}

// NewFileSource creates a source over the directory root on disk.
func NewFileSource(root string, cat *catalog.Catalog) *FileSource {
	if cat == nil {
		cat = catalog.Default
	}
	return &FileSource{
		FS:      os.DirFS(root),
		Root:    root,
		Catalog: cat,
	}
}

// LoadCollection loads the directory of one collection kind.
func (s *FileSource) LoadCollection(ctx context.Context, kind types.Kind) (map[string]any, error) {
	loader := &DirectoryLoader{FS: s.FS, Limit: s.Limit}

	if !kind.IsCode() {
		return loader.Load(ctx, kind.Dir(), s.loadTemplate)
	}

	return loader.Load(ctx, kind.Dir(), func(ctx context.Context, f File) (any, error) {
		return s.loadModule(kind, f)
	})
}

func (s *FileSource) loadTemplate(_ context.Context, f File) (any, error) {
	filePath := filepath.Join(s.Root, filepath.FromSlash(f.Path()))

	content, err := fs.ReadFile(s.FS, f.Path())
	if err != nil {
		return nil, nierrors.ErrTemplateRead(filePath, err)
	}

	return types.Template{
		Path:    filePath,
		Content: string(content),
	}, nil
}

func (s *FileSource) loadModule(kind types.Kind, f File) (module any, err error) {
	filePath := filepath.Join(s.Root, filepath.FromSlash(f.Path()))

	factory, ok := s.Catalog.Lookup(kind, f.Artifact)
	if !ok {
		return nil, nierrors.ErrModuleNotFound(string(kind), f.Artifact, filePath)
	}

	defer func() {
		if r := recover(); r != nil {
			module = nil
			err = nierrors.ErrModuleLoad(string(kind), f.Artifact, filePath, fmt.Errorf("panic: %v", r))
		}
	}()

	module, err = factory()
	if err != nil {
		return nil, nierrors.ErrModuleLoad(string(kind), f.Artifact, filePath, err)
	}

	return module, nil
}
