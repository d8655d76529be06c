package convert

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"glint/internal/ast"
	"glint/internal/descriptor"
	"glint/internal/diagram"
	"glint/internal/identity"
	"glint/internal/layout"
)

// ModelExt is the file extension of demo-grammar model files.
const ModelExt = ".glm"

// BatchOptions configures Directory conversion.
type BatchOptions struct {
	Parse      ast.ParseFunc
	Descriptor *descriptor.Descriptor
	Schema     ast.Schema
	Layout     layout.Options
	// Workers caps the conversion parallelism; 0 means NumCPU.
	Workers int
}

// Directory parses and converts every model file under dir, one
// independent document pipeline per file. Files fan out across an
// errgroup; the first failure cancels the rest.
func Directory(ctx context.Context, dir string, opts BatchOptions) (map[string]*diagram.Snapshot, error) {
	parse := opts.Parse
	if parse == nil {
		parse = ast.ParseModel
	}
	files, err := listModelFiles(dir)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	out := make(map[string]*diagram.Snapshot, len(files))
	for _, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap, err := File(path, parse, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			out[path] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// File parses and converts a single model file with a fresh registry
// and metadata, as a one-shot pipeline outside any session.
func File(path string, parse ast.ParseFunc, opts BatchOptions) (*diagram.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := parse(string(data))
	if err != nil {
		return nil, err
	}
	registry := identity.NewRegistry()
	registry.Reconcile(root)
	return Convert(&Context{
		URI:        path,
		Root:       root,
		Descriptor: opts.Descriptor,
		Schema:     opts.Schema,
		Registry:   registry,
		Metadata:   diagram.NewMetadata(),
		Engine:     layout.NewEngine(opts.Layout),
	})
}

func listModelFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ModelExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
