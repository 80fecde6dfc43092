package scanner

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileNames(ctx context.Context, f File) (any, error) {
	return f.Name, nil
}

func TestArtifactName(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"calculator.go", "calculator"},
		{"calculator.min.js", "calculator"},
		{"README", "README"},
		{".gitkeep", ""},
		{"a.b.c.d", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, ArtifactName(tt.file))
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want map[string]any
	}{
		{
			name: "missing directory yields empty map",
			fsys: fstest.MapFS{},
			want: map[string]any{},
		},
		{
			name: "empty directory yields empty map",
			fsys: fstest.MapFS{"views": &fstest.MapFile{Mode: fs.ModeDir | 0o755}},
			want: map[string]any{},
		},
		{
			name: "extensions are stripped",
			fsys: fstest.MapFS{
				"views/home.html":      {Data: []byte("home")},
				"views/calculator.tpl": {Data: []byte("calc")},
			},
			want: map[string]any{
				"home":       "home.html",
				"calculator": "calculator.tpl",
			},
		},
		{
			name: "backup files are skipped",
			fsys: fstest.MapFS{
				"views/home.html":  {Data: []byte("home")},
				"views/home.html~": {Data: []byte("old")},
				"views/draft~":     {Data: []byte("draft")},
			},
			want: map[string]any{"home": "home.html"},
		},
		{
			name: "subdirectories and dot files are skipped",
			fsys: fstest.MapFS{
				"views/home.html":           {Data: []byte("home")},
				"views/calculator/add.html": {Data: []byte("add")},
				"views/.gitkeep":            {},
			},
			want: map[string]any{"home": "home.html"},
		},
		{
			name: "colliding names resolve to the last file by name",
			fsys: fstest.MapFS{
				"views/page.html": {Data: []byte("a")},
				"views/page.tpl":  {Data: []byte("b")},
				"views/page.htm":  {Data: []byte("c")},
			},
			want: map[string]any{"page": "page.tpl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadDirectory(context.Background(), tt.fsys, "views", fileNames)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDirectory_PassesFileDetails(t *testing.T) {
	fsys := fstest.MapFS{"helpers/format.go": {Data: []byte("package helpers")}}

	var seen File
	_, err := LoadDirectory(context.Background(), fsys, "helpers", func(ctx context.Context, f File) (any, error) {
		seen = f
		return nil, nil
	})
	require.NoError(t, err)

	assert.Equal(t, File{Dir: "helpers", Name: "format.go", Artifact: "format"}, seen)
	assert.Equal(t, "helpers/format.go", seen.Path())
}

func TestLoadDirectory_FailFastAfterAllSiblingsFinish(t *testing.T) {
	fsys := fstest.MapFS{
		"models/a.go": {},
		"models/b.go": {},
		"models/c.go": {},
		"models/d.go": {},
	}
	boom := errors.New("boom")

	var finished atomic.Int32
	result, err := LoadDirectory(context.Background(), fsys, "models", func(ctx context.Context, f File) (any, error) {
		defer finished.Add(1)
		if f.Artifact == "b" {
			return nil, boom
		}
		time.Sleep(10 * time.Millisecond)
		return f.Artifact, nil
	})

	require.ErrorIs(t, err, boom)
	assert.Nil(t, result, "no partial result on failure")
	assert.Equal(t, int32(4), finished.Load(), "every issued load completes before the result")
}

func TestLoadDirectory_SingleErrorReported(t *testing.T) {
	fsys := fstest.MapFS{
		"models/a.go": {},
		"models/b.go": {},
	}
	errA := errors.New("a failed")
	errB := errors.New("b failed")

	_, err := LoadDirectory(context.Background(), fsys, "models", func(ctx context.Context, f File) (any, error) {
		if f.Artifact == "a" {
			return nil, errA
		}
		return nil, errB
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errA) != errors.Is(err, errB), "exactly one of the failures is reported")
}

func TestLoadDirectory_RunsConcurrently(t *testing.T) {
	fsys := fstest.MapFS{
		"libraries/a.go": {},
		"libraries/b.go": {},
		"libraries/c.go": {},
	}

	// Every load blocks until all three have started.
	var started sync.WaitGroup
	started.Add(3)

	done := make(chan map[string]any)
	go func() {
		result, _ := LoadDirectory(context.Background(), fsys, "libraries", func(ctx context.Context, f File) (any, error) {
			started.Done()
			started.Wait()
			return f.Artifact, nil
		})
		done <- result
	}()

	select {
	case result := <-done:
		keys := make([]string, 0, len(result))
		for k := range result {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		assert.Equal(t, []string{"a", "b", "c"}, keys)
	case <-time.After(5 * time.Second):
		t.Fatal("loads did not run concurrently")
	}
}

func TestDirectoryLoader_Limit(t *testing.T) {
	fsys := fstest.MapFS{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		fsys["helpers/"+name+".go"] = &fstest.MapFile{}
	}

	var active, peak atomic.Int32
	loader := &DirectoryLoader{FS: fsys, Limit: 2}

	result, err := loader.Load(context.Background(), "helpers", func(ctx context.Context, f File) (any, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Len(t, result, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestLoadDirectory_CancelledContext(t *testing.T) {
	fsys := fstest.MapFS{"models/a.go": {}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadDirectory(ctx, fsys, "models", fileNames)
	assert.ErrorIs(t, err, context.Canceled)
}
