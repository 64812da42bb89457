package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chazu/arbor/pkg/document"
	"github.com/chazu/arbor/pkg/graph"
)

// load resolves ref as a file when one exists at that path, and as a
// preset name otherwise. Files ending in .lisp are evaluated as scene
// source.
func (a *app) load(ref string) (*graph.Graph, error) {
	if _, err := os.Stat(ref); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return a.catalog.Load(ref)
	}
	if filepath.Ext(ref) != ".lisp" {
		return document.Load(ref)
	}
	src, err := os.ReadFile(ref)
	if err != nil {
		return nil, err
	}
	res, err := a.engine.EvaluateResult(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	if len(res.Errors) > 0 {
		errs := make([]error, len(res.Errors))
		for i, e := range res.Errors {
			errs[i] = e
		}
		return nil, fmt.Errorf("%s: %w", ref, errors.Join(errs...))
	}
	for _, w := range res.Warnings {
		a.log.Warn(w.Message, "node", w.NodeID)
	}
	return res.Graph, nil
}
