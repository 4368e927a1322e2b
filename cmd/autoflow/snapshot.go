package main

import (
	"errors"
	"fmt"
	"os"

	"carvana-workflows/internal/application/port/output"
	"carvana-workflows/internal/infrastructure/dom/snapshot"

	"github.com/spf13/cobra"
)

var snapshotOut string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save the open page as static HTML for offline runs (--html)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := container(cmd, false)
		if err != nil {
			return err
		}
		defer c.Close()

		src, ok := c.Page.(output.Serializer)
		if !ok {
			return errors.New("page cannot be serialized")
		}
		raw, err := src.HTML(cmd.Context())
		if err != nil {
			return err
		}
		clean, err := snapshot.Sanitize(raw, snapshot.DefaultOptions())
		if err != nil {
			return err
		}

		if snapshotOut == "" || snapshotOut == "-" {
			_, err = fmt.Fprint(cmd.OutOrStdout(), clean)
			return err
		}
		if err := os.WriteFile(snapshotOut, []byte(clean), 0o644); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		c.Logger.Info("Snapshot saved", "path", snapshotOut, "url", c.Page.Location().Href, "bytes", len(clean))
		return nil
	},
}

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "output", "o", "", "file to write; stdout when empty")
	rootCmd.AddCommand(snapshotCmd)
}
