package cmd

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var applyCmd = &cobra.Command{
	Use:   "apply <script>",
	Short: "Run a generated script against the target in one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()

		batches, err := splitBatches(f, "GO")
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		if len(batches) == 0 {
			zap.L().Info("script is empty, nothing to apply")
			return nil
		}

		ctx := cmd.Context()
		target, err := openTarget(ctx)
		if err != nil {
			return err
		}
		defer target.Close()

		return applyBatches(ctx, target, batches)
	},
}

func init() {
	RootCmd.AddCommand(applyCmd)
}

// splitBatches cuts a script at separator lines. Separator matching ignores
// case and surrounding blanks; empty batches are dropped.
func splitBatches(r io.Reader, separator string) ([]string, error) {
	var (
		batches []string
		cur     strings.Builder
	)
	flush := func() {
		if b := strings.TrimSpace(cur.String()); b != "" {
			batches = append(batches, b)
		}
		cur.Reset()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.EqualFold(strings.TrimSpace(line), separator) {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()
	return batches, nil
}

// applyBatches runs every batch in a single transaction. A failing batch
// rolls everything back.
func applyBatches(ctx context.Context, db *sql.DB, batches []string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	total := len(batches)
	for i, b := range batches {
		if _, err := tx.ExecContext(ctx, b); err != nil {
			return fmt.Errorf("batch %d/%d failed: %w", i+1, total, err)
		}
		if (i+1)%50 == 0 || i+1 == total {
			zap.L().Info("applied batches", zap.Int("done", i+1), zap.Int("total", total))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit script transaction: %w", err)
	}
	tx = nil

	zap.L().Info("script applied", zap.Int("batches", total))
	return nil
}
