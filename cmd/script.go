package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"db-datasync/internal/engine"
	"db-datasync/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var dryRun bool

var scriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Compare source and target and write the synchronization script",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := Conf.Validate(); err != nil {
			return err
		}

		target, err := openTarget(ctx)
		if err != nil {
			return err
		}
		defer target.Close()

		// 1. Analyze
		zap.L().Info("analyzing target schema")
		catalog, err := schema.Analyze(ctx, target, Dialect)
		if err != nil {
			return fmt.Errorf("failed to read target schema: %w", err)
		}
		tables := catalog.Filter(Conf.Settings.Tables, Conf.Settings.Exclude)
		if len(tables) == 0 {
			return fmt.Errorf("no matching tables found for inputs: %v", Conf.Settings.Tables)
		}

		report := reportWriter(cmd)

		// Dry Run
		if dryRun {
			printDependencyOrder(report, tables)
			return nil
		}

		rows, closeRows, err := newRowSource(ctx, target)
		if err != nil {
			return err
		}
		defer closeRows()

		// 2. Setup Progress Bar
		showBar := !scriptToStdout(Conf.Settings.Output)
		var bar *uiprogress.Bar
		if showBar {
			uiprogress.Start()
			bar = uiprogress.AddBar(len(tables)).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Comparing: "
			})
		}

		// 3. Generate
		gen := &engine.Generator{
			Dialect: Dialect,
			Rows:    rows,
			Prober:  &engine.SQLProber{DB: target, Dialect: Dialect},
			Options: engine.Options{
				Parallel:        Conf.Settings.Parallel,
				BatchSize:       Conf.Settings.BatchSize,
				DisableTriggers: Conf.Settings.DisableTriggers,
				OnProgress: func() {
					if bar != nil {
						bar.Incr()
					}
				},
			},
		}

		start := time.Now()
		var buf bytes.Buffer
		res, err := gen.Generate(ctx, tables, &buf)
		if showBar {
			uiprogress.Stop()
		}
		if err != nil {
			return err
		}

		if err := writeScript(Conf.Settings.Output, buf.Bytes(), cmd.OutOrStdout()); err != nil {
			return err
		}

		printSummary(report, res)
		zap.L().Info("script generated",
			zap.Bool("has_changes", res.HasChanges),
			zap.String("output", Conf.Settings.Output),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(scriptCmd)

	flags := scriptCmd.Flags()
	flags.String("mode", "", "Row pairing mode: join (same server) or hash (two connections)")
	flags.Int("batch-size", 0, "Statements per batch before a GO separator")
	flags.Int("parallel", 0, "Tables compared at once")
	flags.Bool("no-triggers", false, "Leave triggers enabled while the script runs")
	flags.StringP("output", "o", "", "Script file, - for stdout")
	flags.BoolVar(&dryRun, "dry-run", false, "Only list keys and dependency order")

	viper.BindPFlag("settings.mode", flags.Lookup("mode"))
	viper.BindPFlag("settings.batch_size", flags.Lookup("batch-size"))
	viper.BindPFlag("settings.parallel", flags.Lookup("parallel"))
	viper.BindPFlag("settings.output", flags.Lookup("output"))
}

// newRowSource returns the row pairing strategy for the configured mode and
// a function releasing what it opened.
func newRowSource(ctx context.Context, target *sql.DB) (engine.RowSource, func(), error) {
	if Conf.Settings.Mode == ModeJoin {
		return &engine.JoinRowSource{DB: target, Dialect: Dialect, SourceDatabase: Conf.Source.Database}, func() {}, nil
	}

	source, err := connect(ctx, "source", Conf.Source)
	if err != nil {
		return nil, nil, err
	}
	return &engine.HashRowSource{Source: source, Target: target}, func() { source.Close() }, nil
}

// writeScript writes the script to a file, or to stdout for "-". An empty
// script still creates the file.
func writeScript(output string, script []byte, stdout io.Writer) error {
	if scriptToStdout(output) {
		_, err := stdout.Write(script)
		return err
	}
	if err := os.WriteFile(output, script, 0o644); err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

func scriptToStdout(output string) bool {
	return output == "-" || output == ""
}

// reportWriter keeps human-readable output off stdout when the script goes
// there.
func reportWriter(cmd *cobra.Command) io.Writer {
	if scriptToStdout(Conf.Settings.Output) {
		return cmd.ErrOrStderr()
	}
	return cmd.OutOrStdout()
}

func printDependencyOrder(w io.Writer, tables []*schema.Table) {
	var synced []*engine.SyncTable
	var skipped []string
	for _, t := range tables {
		st, ok := engine.NewSyncTable(t, Dialect)
		if !ok {
			skipped = append(skipped, t.FullName())
			continue
		}
		synced = append(synced, st)
	}
	engine.Link(synced)
	ordered := engine.Order(synced)

	fmt.Fprintln(w, "🔍 Analysis Results (Dependency Order):")
	for i, st := range ordered {
		var keys []string
		for _, k := range st.Keys {
			keys = append(keys, k.Name)
		}
		var deps []string
		for _, p := range st.Predecessors() {
			deps = append(deps, p.FullName())
		}
		fmt.Fprintf(w, "[%02d] %-40s key: %s (%s) dependencies: %v\n",
			i+1, st.FullName(), strings.Join(keys, ", "), st.KeySource, deps)
	}
	for _, name := range skipped {
		fmt.Fprintf(w, "[--] %-40s no usable key, skipped\n", name)
	}
}

func printSummary(w io.Writer, res *engine.Result) {
	fmt.Fprintln(w, "\n📊 Summary Report (Dependency Order):")
	if !res.HasChanges {
		fmt.Fprintf(w, "No differences in %d table(s).\n", res.Compared)
	}
	var inserts, updates, deletes int
	for i, t := range res.Changed {
		fmt.Fprintf(w, "[%02d/%02d] %-40s : +%d ~%d -%d\n",
			i+1, len(res.Changed), t.FullName(), len(t.Inserts), len(t.Updates), len(t.Deletes))
		inserts += len(t.Inserts)
		updates += len(t.Updates)
		deletes += len(t.Deletes)
	}
	for _, name := range res.Skipped {
		fmt.Fprintf(w, "[!] %-40s : skipped, no usable key\n", name)
	}
	if res.Plan != nil {
		for _, fk := range res.Plan.ForeignKeys {
			fmt.Fprintf(w, "    └ foreign key %s on %s disabled: %s\n", fk.ForeignKey.Name, fk.Table, fk.Reason)
		}
		for _, ix := range res.Plan.Indexes {
			fmt.Fprintf(w, "    └ unique index %s on %s disabled\n", ix.Index.Name, ix.Table.Name)
		}
		for _, tr := range res.Plan.Triggers {
			fmt.Fprintf(w, "    └ trigger %s on %s disabled\n", tr.Trigger.Name, tr.Table.Name)
		}
	}
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Total: %d insert(s), %d update(s), %d delete(s)\n", inserts, updates, deletes)
}
