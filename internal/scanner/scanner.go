// Package scanner provides artifact discovery for the bootstrap loader.
//
// The scanner reads one flat directory of an fs.FS, derives an artifact
// name from every file it finds, and runs a caller-supplied load operation
// for each file concurrently. Results are joined behind an errgroup barrier:
// the scan completes only once every issued load has returned, and the
// first load error becomes the result of the whole directory.
//
// A missing directory is not an error. Applications need not have every
// collection kind, so an absent directory simply yields no artifacts.
package scanner

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"
)

// BackupMarker is the suffix of editor backup files, which are skipped.
const BackupMarker = "~"

// File describes one directory entry handed to a LoadFunc.
type File struct {
	// Dir is the slash-separated directory within the scanned fs.FS
	Dir string
	// Name is the entry's base name, extension included
	Name string
	// Artifact is the registry key derived from Name
	Artifact string
}

// Path returns the slash-separated path of the file within the fs.FS.
func (f File) Path() string {
	return path.Join(f.Dir, f.Name)
}

// LoadFunc loads one file into an artifact value.
type LoadFunc func(ctx context.Context, f File) (any, error)

// ArtifactName derives the registry key of a file: its base name up to the
// first dot, so "calculator.go" and "calculator.min.js" both map to
// "calculator".
func ArtifactName(fileName string) string {
	return strings.Split(fileName, ".")[0]
}

// IsBackup reports whether a file name carries the backup marker.
func IsBackup(fileName string) bool {
	return strings.HasSuffix(fileName, BackupMarker)
}

// DirectoryLoader loads every file of a directory concurrently.
type DirectoryLoader struct {
	// FS is the file system directories are read from
	FS fs.FS
	// Limit caps concurrent loads; zero or less means one goroutine per file
	Limit int
}

// LoadDirectory is a convenience for an unlimited DirectoryLoader over fsys.
func LoadDirectory(ctx context.Context, fsys fs.FS, dir string, load LoadFunc) (map[string]any, error) {
	loader := &DirectoryLoader{FS: fsys}
	return loader.Load(ctx, dir, load)
}

// Load enumerates dir and applies load to every regular entry.
//
// Entries are skipped when they are subdirectories, carry the backup marker,
// or derive an empty artifact name (dot files). Loads run without ordering
// guarantees between files. Load returns after all of them have finished;
// if any failed, it returns the first error observed and discards every
// result. Sibling loads are not cancelled.
//
// Two files deriving the same artifact name collide deterministically: the
// entry sorting last by file name wins, whatever order the loads finished in.
func (l *DirectoryLoader) Load(ctx context.Context, dir string, load LoadFunc) (map[string]any, error) {
	entries, err := fs.ReadDir(l.FS, dir)
	if err != nil {
		return map[string]any{}, nil
	}

	files := collectFiles(dir, entries)
	if len(files) == 0 {
		return map[string]any{}, nil
	}

	// Each goroutine writes only its own slot; assembly happens after Wait.
	values := make([]any, len(files))

	var g errgroup.Group
	if l.Limit > 0 {
		g.SetLimit(l.Limit)
	}

	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := load(ctx, file)
			if err != nil {
				return err
			}
			values[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// fs.ReadDir sorts by file name, so later entries overwrite earlier ones
	artifacts := make(map[string]any, len(files))
	for i, file := range files {
		artifacts[file.Artifact] = values[i]
	}

	return artifacts, nil
}

func collectFiles(dir string, entries []fs.DirEntry) []File {
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || IsBackup(entry.Name()) {
			continue
		}

		name := ArtifactName(entry.Name())
		if name == "" {
			continue
		}

		files = append(files, File{
			Dir:      dir,
			Name:     entry.Name(),
			Artifact: name,
		})
	}
	return files
}
