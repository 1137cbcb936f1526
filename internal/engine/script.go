package engine

import (
	"fmt"
	"io"

	"db-datasync/internal/dialect"
)

// DefaultBatchSize is the number of data statements between batch
// separators.
const DefaultBatchSize = 500

// Assembler writes the final script from ordered tables and a plan.
type Assembler struct {
	Dialect   dialect.Dialect
	BatchSize int
}

// Assemble writes, in order: the header, constraint suspension, deletes in
// reverse dependency order, updates and inserts in dependency order, then
// constraint restoration. Every block ends with a batch separator.
func (a *Assembler) Assemble(w io.Writer, tables []*SyncTable, plan *Plan) error {
	d := a.Dialect
	sw := &scriptWriter{w: w, sep: d.BatchSeparator()}

	sw.lines(d.ScriptHeader()...)
	sw.separator()

	// --- Suspend ---
	if len(plan.ForeignKeys) > 0 {
		for _, fk := range plan.ForeignKeys {
			sw.lines(
				d.Print(fmt.Sprintf("Disabling foreign key %s on %s...", fk.ForeignKey.Name, fk.Table)),
				d.DisableForeignKey(fk.Table, fk.ForeignKey.Name))
		}
		sw.separator()
	}
	if len(plan.Indexes) > 0 {
		for _, ix := range plan.Indexes {
			sw.lines(
				d.Print(fmt.Sprintf("Disabling index %s on %s...", ix.Index.Name, ix.Table.Name)),
				d.DisableIndex(ix.Table.Name, ix.Index.Name))
		}
		sw.separator()
	}
	if len(plan.Triggers) > 0 {
		for _, tr := range plan.Triggers {
			sw.lines(
				d.Print(fmt.Sprintf("Disabling trigger %s on %s...", tr.Trigger.Name, tr.Table.Name)),
				d.DisableTrigger(tr.Table.Name, tr.Trigger.Name))
		}
		sw.separator()
	}

	// --- Data ---
	for i := len(tables) - 1; i >= 0; i-- {
		t := tables[i]
		if len(t.Deletes) == 0 {
			continue
		}
		sw.lines(d.Print(fmt.Sprintf("Deleting %d row(s)...", len(t.Deletes))))
		sw.batch(t.Deletes, a.batchSize())
	}
	for _, t := range tables {
		if len(t.Updates) == 0 {
			continue
		}
		sw.lines(d.Print(fmt.Sprintf("Updating %d row(s)...", len(t.Updates))))
		sw.batch(t.Updates, a.batchSize())
	}
	for _, t := range tables {
		if len(t.Inserts) == 0 {
			continue
		}
		identity := t.NeedsIdentityInsert()
		sw.lines(d.Print(fmt.Sprintf("Inserting %d row(s)...", len(t.Inserts))))
		if identity {
			sw.lines(d.IdentityInsert(t.Name, true))
		}
		sw.batch(t.Inserts, a.batchSize())
		if identity {
			sw.lines(d.IdentityInsert(t.Name, false))
			sw.separator()
		}
	}

	// --- Restore ---
	if len(plan.Triggers) > 0 {
		for _, tr := range plan.Triggers {
			sw.lines(
				d.Print(fmt.Sprintf("Enabling trigger %s on %s...", tr.Trigger.Name, tr.Table.Name)),
				d.EnableTrigger(tr.Table.Name, tr.Trigger.Name))
		}
		sw.separator()
	}
	if len(plan.Indexes) > 0 {
		for _, ix := range plan.Indexes {
			sw.lines(
				d.Print(fmt.Sprintf("Rebuilding index %s on %s...", ix.Index.Name, ix.Table.Name)),
				d.RebuildIndex(ix.Table.Name, ix.Index.Name))
		}
		sw.separator()
	}
	if len(plan.ForeignKeys) > 0 {
		for _, fk := range plan.ForeignKeys {
			sw.lines(
				d.Print(fmt.Sprintf("Enabling foreign key %s on %s...", fk.ForeignKey.Name, fk.Table)),
				d.EnableForeignKey(fk.Table, fk.ForeignKey.Name, fk.Checked))
		}
		sw.separator()
	}
	return sw.err
}

func (a *Assembler) batchSize() int {
	if a.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return a.BatchSize
}

// scriptWriter keeps the first write error and ignores everything after it.
type scriptWriter struct {
	w       io.Writer
	sep     string
	err     error
	pending int // statements since the last separator
}

func (sw *scriptWriter) lines(ls ...string) {
	for _, l := range ls {
		if sw.err != nil {
			return
		}
		_, sw.err = io.WriteString(sw.w, l+"\n")
	}
}

func (sw *scriptWriter) separator() {
	sw.lines(sw.sep)
	sw.pending = 0
}

// batch writes statements with a separator after every size statements and
// exactly one separator at the end.
func (sw *scriptWriter) batch(stmts []string, size int) {
	sw.pending = 0
	for _, s := range stmts {
		sw.lines(s)
		sw.pending++
		if sw.pending == size {
			sw.separator()
		}
	}
	if sw.pending > 0 {
		sw.separator()
	}
}
