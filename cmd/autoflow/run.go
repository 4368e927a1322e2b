package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"carvana-workflows/internal/application/port/input"
	"carvana-workflows/internal/di"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/preferences"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the detected page and its menu",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := container(cmd, false)
		if err != nil {
			return err
		}
		defer c.Close()

		page, err := c.Engine.DetectPage(cmd.Context())
		if err != nil {
			return err
		}
		printMenu(cmd.OutOrStdout(), c, page)
		return nil
	},
}

func printMenu(w io.Writer, c *di.Container, page *entity.PageDefinition) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	bold.Fprintf(w, "%s", page.ID)
	if page.Label != "" {
		fmt.Fprintf(w, " (%s)", page.Label)
	}
	fmt.Fprintln(w)

	menu := c.Menus.Load(page.ID, page.RuntimeIDs())
	hidden := make(map[string]bool, len(menu.HiddenInActions))
	for _, id := range menu.HiddenInActions {
		hidden[id] = true
	}
	for _, id := range menu.Order {
		wf, ok := page.Workflow(id)
		if !ok {
			continue
		}
		prefs, persisted := c.RunPrefs.Lookup(id)
		st := preferences.ResolveTriggers(wf, prefs, persisted)

		var tags []string
		if st.Auto.Enabled {
			tags = append(tags, "auto")
		}
		if st.Repeat.Enabled {
			tags = append(tags, "repeat")
		}
		if wf.Profiles {
			tags = append(tags, c.Profiles.Resolve(wf).Label)
		}
		line := fmt.Sprintf("  %-24s %s", id, strings.Join(tags, ", "))
		if hidden[id] {
			dim.Fprintln(w, line+" (hidden)")
			continue
		}
		fmt.Fprintln(w, line)
	}
}

var runPage string

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Run one workflow on the detected page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := container(cmd, false)
		if err != nil {
			return err
		}
		defer c.Close()

		pageID := runPage
		if pageID == "" {
			page, err := c.Engine.DetectPage(cmd.Context())
			if err != nil {
				return err
			}
			pageID = page.ID
		}

		result, err := c.Engine.RunWorkflow(cmd.Context(), pageID, args[0])
		if err != nil {
			return err
		}
		return printResult(cmd.OutOrStdout(), result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runPage, "page", "", "page id; detected when empty")
}

func printResult(w io.Writer, r *input.RunResult) error {
	color.New(color.FgGreen).Fprintf(w, "%s: %d steps in %s\n", r.Workflow, r.Steps, r.Duration.Round(1e6))
	if len(r.Vars) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Vars))
	for name := range r.Vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		switch v := r.Vars[name].(type) {
		case string:
			fmt.Fprintf(w, "  %s: %s\n", name, v)
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			fmt.Fprintf(w, "  %s: %s\n", name, raw)
		}
	}
	return nil
}
