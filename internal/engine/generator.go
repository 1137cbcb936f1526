package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"db-datasync/internal/dialect"
	"db-datasync/internal/schema"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultParallel is the number of tables compared at once.
const DefaultParallel = 4

type Options struct {
	Parallel        int
	BatchSize       int
	DisableTriggers bool

	// OnProgress is called once per input table when its comparison ends.
	// It may be called from several goroutines.
	OnProgress func()
}

// Generator produces a synchronization script for a set of tables.
type Generator struct {
	Dialect dialect.Dialect
	Rows    RowSource
	Prober  Prober
	Options Options
}

// Result summarizes one run.
type Result struct {
	HasChanges bool
	Changed    []*SyncTable // dependency order
	Skipped    []string     // tables without a usable key
	Compared   int
	Plan       *Plan
}

// Generate compares every table and writes the script to w. Nothing is
// written when an error occurs or when no table differs.
func (g *Generator) Generate(ctx context.Context, tables []*schema.Table, w io.Writer) (*Result, error) {
	res := &Result{}

	// --- Phase 1: compare tables in parallel ---
	var synced []*SyncTable
	for _, meta := range tables {
		st, ok := NewSyncTable(meta, g.Dialect)
		if !ok {
			zap.L().Warn("table has no usable key, skipping", zap.String("table", meta.FullName()))
			res.Skipped = append(res.Skipped, meta.FullName())
			g.progress()
			continue
		}
		synced = append(synced, st)
	}

	parallel := g.Options.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for _, st := range synced {
		st := st
		eg.Go(func() error {
			defer g.progress()
			if _, err := Diff(egCtx, st, g.Rows); err != nil {
				return fmt.Errorf("failed to compare %s: %w", st.FullName(), err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	res.Compared = len(synced)

	// --- Phase 2: order, plan and assemble ---
	var changed []*SyncTable
	for _, st := range synced {
		if st.HasChanges() {
			changed = append(changed, st)
		}
	}
	if len(changed) == 0 {
		zap.L().Info("no differences found", zap.Int("tables", res.Compared))
		return res, nil
	}

	Link(changed)
	ordered := Order(changed)

	planner := &Planner{Dialect: g.Dialect, Prober: g.Prober, DisableTriggers: g.Options.DisableTriggers}
	plan, err := planner.Plan(ctx, ordered)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	asm := &Assembler{Dialect: g.Dialect, BatchSize: g.Options.BatchSize}
	if err := asm.Assemble(&buf, ordered, plan); err != nil {
		return nil, err
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write script: %w", err)
	}

	res.HasChanges = true
	res.Changed = ordered
	res.Plan = plan
	return res, nil
}

func (g *Generator) progress() {
	if g.Options.OnProgress != nil {
		g.Options.OnProgress()
	}
}
