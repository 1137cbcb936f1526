package engine

import (
	"context"
	"fmt"

	"db-datasync/internal/dialect"
	"db-datasync/internal/literal"

	"go.uber.org/zap"
)

// Diff compares every paired row of t and fills its statement lists and
// column counters. It reports whether any statement was produced.
//
// Values are compared by their literal form, so two values are equal
// exactly when they would be scripted identically.
func Diff(ctx context.Context, t *SyncTable, rows RowSource) (bool, error) {
	t.Deletes, t.Updates, t.Inserts, t.updated = nil, nil, nil, nil
	for _, c := range t.Columns {
		c.RowsUpdated = 0
	}

	err := rows.Each(ctx, t, func(r PairedRow) error {
		switch {
		case r.InSource && r.InTarget:
			return t.diffUpdate(r.Source, r.Target)
		case r.InSource:
			return t.diffInsert(r.Source)
		case r.InTarget:
			return t.diffDelete(r.Target)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	zap.L().Debug("table compared",
		zap.String("table", t.FullName()),
		zap.Int("inserts", len(t.Inserts)),
		zap.Int("updates", len(t.Updates)),
		zap.Int("deletes", len(t.Deletes)))
	return t.HasChanges(), nil
}

func (t *SyncTable) diffInsert(src []any) error {
	lits, err := t.literals(src)
	if err != nil {
		return err
	}
	var cols, values []string
	for i, c := range t.Columns {
		if !c.Insertable {
			continue
		}
		cols = append(cols, c.Quoted)
		values = append(values, lits[i])
	}
	t.Inserts = append(t.Inserts, t.d.InsertQuery(t.Name, cols, values))
	return nil
}

func (t *SyncTable) diffDelete(tgt []any) error {
	keys, err := t.keyLiterals(tgt)
	if err != nil {
		return err
	}
	t.Deletes = append(t.Deletes, t.d.DeleteQuery(t.Name, t.keyPredicate(keys)))
	return nil
}

func (t *SyncTable) diffUpdate(src, tgt []any) error {
	newVals, err := t.literals(src)
	if err != nil {
		return err
	}
	oldVals, err := t.literals(tgt)
	if err != nil {
		return err
	}

	var (
		set     []string
		changed []int
	)
	for i, c := range t.Columns {
		if c.IsKey || !c.Updatable || newVals[i] == oldVals[i] {
			continue
		}
		c.RowsUpdated++
		set = append(set, c.Quoted+" = "+newVals[i])
		changed = append(changed, i)
	}
	if len(set) == 0 {
		return nil
	}

	keys := make([]string, len(t.keyPos))
	for i, p := range t.keyPos {
		keys[i] = oldVals[p]
	}
	t.Updates = append(t.Updates, t.d.UpdateQuery(t.Name, set, t.keyPredicate(keys)))
	if t.trackRows {
		// columns the update does not write keep their target values
		after := append([]string(nil), oldVals...)
		for _, i := range changed {
			after[i] = newVals[i]
		}
		t.updated = append(t.updated, rowImage{key: keys, values: after, changed: changed})
	}
	return nil
}

// literals encodes a whole row, aligned with Columns.
func (t *SyncTable) literals(values []any) ([]string, error) {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		s, err := literal.Encode(values[i], c.DataType)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s.%s: %w", t.FullName(), c.Name, err)
		}
		out[i] = s
	}
	return out, nil
}

func (t *SyncTable) keyLiterals(values []any) ([]string, error) {
	out := make([]string, len(t.keyPos))
	for i, p := range t.keyPos {
		c := t.Columns[p]
		s, err := literal.Encode(values[p], c.DataType)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %s.%s: %w", t.FullName(), c.Name, err)
		}
		out[i] = s
	}
	return out, nil
}

// keyPredicate matches one row by its key literals. NULL key parts compare
// with IS NULL.
func (t *SyncTable) keyPredicate(keys []string) string {
	preds := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		preds[i] = t.d.Predicate(k.Quoted, keys[i])
	}
	return dialect.JoinPredicates(preds)
}
