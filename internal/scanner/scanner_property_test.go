//go:build property
// +build property

package scanner

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestScannerProperties tests invariant properties of the directory loader
func TestScannerProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("artifact name never contains a dot", prop.ForAll(
		func(base, ext string) bool {
			return !strings.Contains(ArtifactName(base+"."+ext), ".")
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("artifact name is the prefix before the first dot", prop.ForAll(
		func(base, ext string) bool {
			if base == "" {
				return true
			}
			return ArtifactName(base+"."+ext) == base
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.Property("every non-backup file becomes an artifact", prop.ForAll(
		func(names []string) bool {
			fsys := fstest.MapFS{}
			want := map[string]bool{}
			for _, name := range names {
				fsys["views/"+name+".html"] = &fstest.MapFile{}
				fsys["views/"+name+".html~"] = &fstest.MapFile{}
				want[name] = true
			}

			got, err := LoadDirectory(context.Background(), fsys, "views", fileNames)
			if err != nil || len(got) != len(want) {
				return false
			}
			for name := range want {
				if got[name] != name+".html" {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("repeated loads agree on collisions", prop.ForAll(
		func(exts []string) bool {
			fsys := fstest.MapFS{}
			for _, ext := range exts {
				fsys["views/page."+ext] = &fstest.MapFile{}
			}

			first, err := LoadDirectory(context.Background(), fsys, "views", fileNames)
			if err != nil {
				return false
			}
			for i := 0; i < 3; i++ {
				again, err := LoadDirectory(context.Background(), fsys, "views", fileNames)
				if err != nil || again["page"] != first["page"] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(4, gen.Identifier()),
	))

	properties.TestingRun(t)
}
