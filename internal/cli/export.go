package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meshmap/telegram-bot/internal/config"
	"meshmap/telegram-bot/internal/store"
)

var exportOutput string

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write the export to a file instead of stdout")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Dump the marker dataset as CSV",
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

		data, err := st.ExportRaw()
		if err != nil {
			return err
		}

		if exportOutput == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		return nil
	},
}
