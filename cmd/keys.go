package cmd

import (
	"fmt"
	"strings"

	"db-datasync/internal/schema"

	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the key each table is matched on",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target, err := openTarget(ctx)
		if err != nil {
			return err
		}
		defer target.Close()

		catalog, err := schema.Analyze(ctx, target, Dialect)
		if err != nil {
			return fmt.Errorf("failed to read target schema: %w", err)
		}

		w := cmd.OutOrStdout()
		for _, t := range catalog.Filter(Conf.Settings.Tables, Conf.Settings.Exclude) {
			key := schema.ResolveKey(t)
			if key.Source == schema.KeyNone {
				fmt.Fprintf(w, "%-40s -\n", t.FullName())
				continue
			}
			var cols []string
			for _, c := range key.Columns {
				cols = append(cols, c.Name)
			}
			source := key.Source.String()
			if key.Index != "" {
				source += " " + key.Index
			}
			fmt.Fprintf(w, "%-40s %-50s %s\n", t.FullName(), strings.Join(cols, ", "), source)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(keysCmd)
}
