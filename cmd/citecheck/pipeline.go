// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/citecheck/internal/audit"
	"github.com/pdiddy/citecheck/internal/cache"
	"github.com/pdiddy/citecheck/internal/reconcile"
	"github.com/pdiddy/citecheck/internal/report"
	"github.com/pdiddy/citecheck/internal/similarity"
	"github.com/pdiddy/citecheck/internal/source"
	"github.com/pdiddy/citecheck/pkg/types"
)

// buildAuditor wires sources, cache, engine, and reporter from cfg. The
// returned close function releases the cache.
func buildAuditor(ctx context.Context, cfg types.Config, diag io.Writer) (*audit.Auditor, func() error, error) {
	venues, err := similarity.LoadSynonyms(cfg.Similarity.SynonymsFile)
	if err != nil {
		return nil, nil, err
	}
	tk := similarity.New(cfg.Similarity, venues)

	adapters, err := source.DefaultRegistry().Build(cfg.Sources, source.Options{Diag: diag})
	if err != nil {
		return nil, nil, fmt.Errorf("building sources: %w", err)
	}

	c, err := cache.Open(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}

	engine := reconcile.New(adapters, tk, cfg.Match, reconcile.Options{
		Cache:    c,
		Priority: cfg.Sources.Priority,
		Diag:     diag,
	})
	return audit.New(engine, report.New(tk), cfg.Run, diag), c.Close, nil
}
