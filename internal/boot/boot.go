// Package boot implements the bootstrap loader: it loads the five artifact
// collections of an application in parallel and publishes them as a
// registry.Store once every collection has loaded.
package boot

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	nierrors "github.com/conneroisu/ni/internal/errors"
	"github.com/conneroisu/ni/internal/registry"
	"github.com/conneroisu/ni/internal/types"
)

// Source produces one artifact collection per kind. Implementations exist
// per deployment: scanner.FileSource scans a directory tree, Collections
// serves a set compiled into the binary.
type Source interface {
	LoadCollection(ctx context.Context, kind types.Kind) (map[string]any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, kind types.Kind) (map[string]any, error)

// LoadCollection implements Source.
func (f SourceFunc) LoadCollection(ctx context.Context, kind types.Kind) (map[string]any, error) {
	return f(ctx, kind)
}

// Collections is a Source over in-memory collections. Kinds without an
// entry load as empty collections.
type Collections map[types.Kind]map[string]any

// LoadCollection implements Source.
func (c Collections) LoadCollection(_ context.Context, kind types.Kind) (map[string]any, error) {
	collection := make(map[string]any, len(c[kind]))
	for name, artifact := range c[kind] {
		collection[name] = artifact
	}
	return collection, nil
}

// Load runs every collection load concurrently and waits for all of them.
// If any load fails, Load returns the first error and no store.
func Load(ctx context.Context, src Source) (*registry.Store, error) {
	results := make([]map[string]any, len(types.Kinds))

	var g errgroup.Group
	for i, kind := range types.Kinds {
		g.Go(func() error {
			collection, err := src.LoadCollection(ctx, kind)
			if err != nil {
				return err
			}
			results[i] = collection
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return assemble(results)
}

func assemble(results []map[string]any) (*registry.Store, error) {
	b := registry.NewBuilder()

	for i, kind := range types.Kinds {
		// Sorted so the first reported type error does not depend on map order.
		names := make([]string, 0, len(results[i]))
		for name := range results[i] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			artifact := results[i][name]

			switch kind {
			case types.KindControllers:
				c, ok := artifact.(types.Controller)
				if !ok {
					return nil, nierrors.NewBootError(
						nierrors.ErrCodeNotController,
						fmt.Sprintf("%s is a %T, not a handler group", name, artifact),
						nil,
					).WithKind(string(kind))
				}
				b.AddController(name, c)

			case types.KindViews:
				t, ok := artifact.(types.Template)
				if !ok {
					return nil, nierrors.NewBootError(
						nierrors.ErrCodeTemplateRead,
						fmt.Sprintf("%s is a %T, not a template", name, artifact),
						nil,
					).WithKind(string(kind))
				}
				b.AddView(name, t)

			default:
				b.AddModule(kind, name, artifact)
			}
		}
	}

	return b.Build(), nil
}
