package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"db-datasync/internal/dialect"
	"db-datasync/internal/schema"

	"go.uber.org/zap"
)

// ForeignKeyAction disables a foreign key before the data changes and
// re-enables it afterwards.
type ForeignKeyAction struct {
	Table      string // quoted referencing table
	ForeignKey *schema.ForeignKey
	Checked    bool
	Reason     string
}

// IndexAction disables a unique index and rebuilds it afterwards.
type IndexAction struct {
	Table *SyncTable
	Index *schema.Index
}

// TriggerAction disables a trigger and re-enables it afterwards.
type TriggerAction struct {
	Table   *SyncTable
	Trigger *schema.Trigger
}

// Plan lists the constraints the script toggles around the data changes.
type Plan struct {
	ForeignKeys []*ForeignKeyAction
	Indexes     []*IndexAction
	Triggers    []*TriggerAction
}

// Empty reports whether nothing needs to be toggled.
func (p *Plan) Empty() bool {
	return len(p.ForeignKeys)+len(p.Indexes)+len(p.Triggers) == 0
}

// Prober checks whether applying the recorded updates of a table would make
// two rows share a unique index value at some point.
type Prober interface {
	UniqueMismatch(ctx context.Context, t *SyncTable, idx *schema.Index) (bool, error)
}

// Planner decides which constraints must be suspended.
type Planner struct {
	Dialect         dialect.Dialect
	Prober          Prober
	DisableTriggers bool
}

// Plan analyzes tables, which must be ordered and linked.
func (p *Planner) Plan(ctx context.Context, tables []*SyncTable) (*Plan, error) {
	plan := &Plan{}
	seen := make(map[*schema.ForeignKey]bool)
	addFK := func(fk *schema.ForeignKey, reason string) {
		if seen[fk] {
			return
		}
		seen[fk] = true
		plan.ForeignKeys = append(plan.ForeignKeys, &ForeignKeyAction{
			Table:      p.Dialect.TableName(fk.Schema, fk.Table),
			ForeignKey: fk,
			Checked:    !fk.IsNotTrusted,
			Reason:     reason,
		})
	}

	// --- Step 1: Foreign keys between changed tables ---
	for _, t := range tables {
		for _, r := range t.Relationships {
			if r.Foreign != t {
				continue
			}
			r.ShouldDisable, r.Reason = shouldDisable(r)
			if r.ShouldDisable {
				addFK(r.ForeignKey, r.Reason)
			}
		}
	}

	// --- Step 2: Unique indexes with transient collisions ---
	for _, t := range tables {
		for _, idx := range candidateIndexes(t) {
			collides, err := p.Prober.UniqueMismatch(ctx, t, idx)
			if err != nil {
				return nil, err
			}
			if !collides {
				continue
			}
			if idx.IsClustered {
				// disabling a clustered index makes the table unreadable
				zap.L().Warn("clustered unique index may collide during update",
					zap.String("table", t.FullName()), zap.String("index", idx.Name))
				continue
			}
			plan.Indexes = append(plan.Indexes, &IndexAction{Table: t, Index: idx})

			// keys pointing at a disabled index cannot be checked
			cols := idx.KeyColumns()
			for _, fk := range t.Meta.ReferencedBy {
				if !fk.IsDisabled && sameColumns(fk.RefColumns, cols) {
					addFK(fk, "references disabled index "+idx.Name)
				}
			}
		}
	}

	// --- Step 3: Triggers ---
	if p.DisableTriggers {
		for _, t := range tables {
			for _, tr := range t.Meta.Triggers {
				if tr.IsDisabled {
					continue
				}
				if (tr.OnInsert && len(t.Inserts) > 0) ||
					(tr.OnUpdate && len(t.Updates) > 0) ||
					(tr.OnDelete && len(t.Deletes) > 0) {
					plan.Triggers = append(plan.Triggers, &TriggerAction{Table: t, Trigger: tr})
				}
			}
		}
	}

	zap.L().Debug("constraint plan built",
		zap.Int("foreign_keys", len(plan.ForeignKeys)),
		zap.Int("indexes", len(plan.Indexes)),
		zap.Int("triggers", len(plan.Triggers)))
	return plan, nil
}

// shouldDisable decides whether a relationship must be suspended while the
// script runs.
func shouldDisable(r *Relationship) (bool, string) {
	fk := r.ForeignKey
	p, f := r.Primary, r.Foreign

	if fk.IsSelfReference() {
		if len(f.Inserts) > 0 || len(f.Deletes) > 0 {
			return true, "self-reference with inserted or deleted rows"
		}
		if f.AnyUpdated(fk.Columns) || f.AnyUpdated(fk.RefColumns) {
			return true, "self-reference with updated key columns"
		}
		return false, ""
	}

	// a back edge of a dependency cycle
	if p.DependencyIndex >= f.DependencyIndex {
		return true, "dependency cycle"
	}

	if !f.AnyUpdated(fk.Columns) {
		return false, ""
	}
	switch {
	case p.AnyUpdated(fk.RefColumns):
		return true, "referenced columns updated"
	case len(p.Deletes) > 0:
		return true, "referenced rows deleted"
	case len(p.Inserts) > 0:
		return true, "referenced rows inserted"
	}
	return false, ""
}

// candidateIndexes returns the enabled non-primary unique indexes with at
// least one key column changed in more than one row. A single changed row
// cannot collide with another changed row.
func candidateIndexes(t *SyncTable) []*schema.Index {
	if len(t.Updates) == 0 {
		return nil
	}
	var out []*schema.Index
	for _, idx := range t.Meta.Indexes {
		if idx.IsPrimaryKey || idx.IsDisabled {
			continue
		}
		for _, name := range idx.KeyColumns() {
			if c := t.Column(name); c != nil && c.RowsUpdated > 1 {
				out = append(out, idx)
				break
			}
		}
	}
	return out
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// ---------------------------------------------------------------------
// Collision probe
// ---------------------------------------------------------------------

// DefaultProbeChunk is the number of updated rows checked per query.
const DefaultProbeChunk = 100

// SQLProber looks for target rows, other than the updated row itself, that
// already hold the new index value of an updated row.
type SQLProber struct {
	DB        *sql.DB
	Dialect   dialect.Dialect
	ChunkSize int
}

func (p *SQLProber) UniqueMismatch(ctx context.Context, t *SyncTable, idx *schema.Index) (bool, error) {
	positions, ok := t.positions(idx.KeyColumns())
	if !ok {
		// computed key columns are not compared, so assume the worst
		zap.L().Debug("index has uncompared columns, assuming collision",
			zap.String("table", t.FullName()), zap.String("index", idx.Name))
		return true, nil
	}

	var conds []string
	for _, img := range t.updated {
		if !img.touches(positions) {
			continue
		}
		vals := make([]string, len(positions))
		for i, pos := range positions {
			vals[i] = p.Dialect.Predicate(t.Columns[pos].Quoted, img.values[pos])
		}
		conds = append(conds, fmt.Sprintf("(%s AND NOT (%s))",
			dialect.JoinPredicates(vals), t.keyPredicate(img.key)))
	}

	chunk := p.ChunkSize
	if chunk <= 0 {
		chunk = DefaultProbeChunk
	}
	for start := 0; start < len(conds); start += chunk {
		end := start + chunk
		if end > len(conds) {
			end = len(conds)
		}
		query := p.Dialect.ExistsQuery(t.Name, strings.Join(conds[start:end], " OR "))
		found, err := p.exists(ctx, query)
		if err != nil {
			return false, &ConstraintProbeError{Table: t.FullName(), Index: idx.Name, Err: err}
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

func (p *SQLProber) exists(ctx context.Context, query string) (bool, error) {
	var one int
	err := p.DB.QueryRowContext(ctx, query).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
