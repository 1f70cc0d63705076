package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"meshmap/telegram-bot/internal/config"
	"meshmap/telegram-bot/internal/flow"
	"meshmap/telegram-bot/internal/model"
	"meshmap/telegram-bot/internal/store"
)

var (
	statsTitleColor = color.New(color.FgCyan, color.Bold)
	statsLabelColor = color.New(color.FgBlue, color.Bold)
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the marker dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.DataFile)
		if err != nil {
			return err
		}
		logState := store.OpenLogState(cfg.LogStateFile)

		tiers := flow.Tiers{
			Admins:  config.IDSet(cfg.AdminIDs),
			Special: config.IDSet(cfg.SpecialIDs),
		}
		engine := flow.New(st, logState, slog.New(slog.NewTextHandler(io.Discard, nil)), tiers, cfg.FlowTimeout, nil)

		stats, err := engine.ComputeStats()
		if err != nil {
			return err
		}

		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func printStats(w io.Writer, stats model.Stats) {
	fmt.Fprintln(w, statsTitleColor.Sprint("Marker dataset"))
	fmt.Fprintf(w, "  %s %d\n", statsLabelColor.Sprint("Total markers:"), stats.Total)
	fmt.Fprintf(w, "  %s %d\n", statsLabelColor.Sprint("Unique owners:"), stats.UniqueOwners)
	fmt.Fprintf(w, "  %s %d\n", statsLabelColor.Sprint("With links:"), stats.WithLink)
	fmt.Fprintf(w, "  %s %d\n", statsLabelColor.Sprint("Special owners:"), stats.SpecialOwners)

	if len(stats.TopOwners) == 0 {
		return
	}
	fmt.Fprintln(w, statsTitleColor.Sprint("Top contributors"))
	for i, oc := range stats.TopOwners {
		name := oc.Name
		if name == "" {
			name = model.AnonymousName
		}
		fmt.Fprintf(w, "  %d. %s (%s): %d\n", i+1, name, oc.ID, oc.Count)
	}
}
