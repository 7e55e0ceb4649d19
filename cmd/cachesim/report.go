package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/compcache/datarecording"
	"github.com/sarchlab/compcache/workload"
)

var reportCmd = &cobra.Command{
	Use:   "report <database>",
	Short: "Print the level counters of a recorded run.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		return report(cmd, args[0], level)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().String("level", "", "only report the named level")
}

func report(cmd *cobra.Command, filename, level string) error {
	reader, err := datarecording.NewReader(filename)
	if err != nil {
		return err
	}
	defer reader.Close()

	tables, err := reader.ListTables(cmd.Context())
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", filename, err)
	}

	if !slices.Contains(tables, workload.LevelStatsTable) {
		return fmt.Errorf("%s has no %s table", filename,
			workload.LevelStatsTable)
	}

	reader.MapTable(workload.LevelStatsTable, workload.LevelStats{})

	params := datarecording.QueryParams{}
	if level != "" {
		params.Where = "Level = ?"
		params.Args = []any{level}
	}

	rows, _, err := reader.Query(cmd.Context(), workload.LevelStatsTable, params)
	if err != nil {
		return err
	}

	stats := make([]workload.LevelStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, *r.(*workload.LevelStats))
	}

	return printLevelStats(cmd.OutOrStdout(), stats)
}

func printLevelStats(out io.Writer, stats []workload.LevelStats) error {
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "level\taccesses\thits\tmisses\tmiss rate\t"+
		"evictions\tresizes\twritebacks\tinvalidations\tavg cycles\t")

	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.3f\t%d\t%d\t%d\t%d\t%.1f\t\n",
			s.Level, s.Accesses, s.Hits, s.Misses, s.MissRate(),
			s.Evictions, s.Resizes, s.Writebacks, s.Invalidations,
			s.AvgLatency)
	}

	return w.Flush()
}
