package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"carvana-workflows/internal/di"
	"carvana-workflows/internal/domain/entity"
	"carvana-workflows/internal/usecase/preferences"
	"carvana-workflows/internal/usecase/reorder"

	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect and change saved workflow preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show <workflow>",
	Short: "Print run prefs, trigger state and profiles",
	Args:  cobra.ExactArgs(1),
	RunE: withWorkflow(func(cmd *cobra.Command, c *di.Container, wf *entity.WorkflowDefinition, _ []string) error {
		prefs, persisted := c.RunPrefs.Lookup(wf.ID)
		st := preferences.ResolveTriggers(wf, prefs, persisted)
		return printJSON(cmd, map[string]any{
			"runPrefs": preferences.EffectiveRunPrefs(st, prefs),
			"triggers": st,
			"profiles": c.Profiles.Get(wf.ID),
			"options":  c.Profiles.Resolve(wf).Values,
		})
	}),
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <workflow> <auto|repeat> <on|off>",
	Short: "Toggle a trigger",
	Args:  cobra.ExactArgs(3),
	RunE: withWorkflow(func(cmd *cobra.Command, c *di.Container, wf *entity.WorkflowDefinition, args []string) error {
		on, err := parseSwitch(args[2])
		if err != nil {
			return err
		}
		prefs, persisted := c.RunPrefs.Lookup(wf.ID)
		st := preferences.ResolveTriggers(wf, prefs, persisted)

		var patch preferences.RunPrefsPatch
		switch args[1] {
		case "auto":
			if on && !st.Auto.Available {
				return fmt.Errorf("auto-run is not available for %s", wf.ID)
			}
			patch.Auto = &on
		case "repeat":
			if on && !st.Repeat.Available {
				return fmt.Errorf("auto-repeat is not available for %s", wf.ID)
			}
			patch.Repeat = &on
		default:
			return fmt.Errorf("unknown trigger %q", args[1])
		}
		return printJSON(cmd, c.RunPrefs.UpdateFrom(wf.ID, preferences.EffectiveRunPrefs(st, prefs), patch))
	}),
}

var prefsProfileCmd = &cobra.Command{
	Use:   "profile <workflow> <p1|p2|p3>",
	Short: "Switch the active option profile",
	Args:  cobra.ExactArgs(2),
	RunE: withWorkflow(func(cmd *cobra.Command, c *di.Container, wf *entity.WorkflowDefinition, args []string) error {
		p, err := c.Profiles.SetActive(wf.ID, entity.ProfileID(args[1]))
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	}),
}

var prefsMoveCmd = &cobra.Command{
	Use:   "move <page> <workflow> <position>",
	Short: "Move a workflow within the visible menu",
	Args:  cobra.ExactArgs(3),
	RunE: withPage(func(cmd *cobra.Command, c *di.Container, page *entity.PageDefinition, args []string) error {
		target, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("position: %w", err)
		}
		m := reorder.NewMenu(c.Menus, page, reorder.MenuOptions{
			Announce: func(a reorder.Announcement) {
				if a.Kind == reorder.AnnounceDrop {
					fmt.Fprintln(cmd.ErrOrStderr(), a.Message)
				}
			},
		})
		defer m.Close()
		menu, moved := m.Move(args[1], target)
		if !moved {
			fmt.Fprintln(cmd.ErrOrStderr(), "Order unchanged")
		}
		return printJSON(cmd, menu)
	}),
}

var prefsHideCmd = &cobra.Command{
	Use:   "hide <page> <workflow> [on|off]",
	Short: "Hide a workflow from the menu, or show it again",
	Args:  cobra.RangeArgs(2, 3),
	RunE: withPage(func(cmd *cobra.Command, c *di.Container, page *entity.PageDefinition, args []string) error {
		hidden := true
		if len(args) == 3 {
			var err error
			if hidden, err = parseSwitch(args[2]); err != nil {
				return err
			}
		}
		menu, err := c.Menus.SetHidden(page.ID, page.RuntimeIDs(), args[1], hidden)
		if err != nil {
			return err
		}
		return printJSON(cmd, menu)
	}),
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	prefsCmd.AddCommand(prefsProfileCmd)
	prefsCmd.AddCommand(prefsMoveCmd)
	prefsCmd.AddCommand(prefsHideCmd)
}

type workflowRun func(cmd *cobra.Command, c *di.Container, wf *entity.WorkflowDefinition, args []string) error

func withWorkflow(fn workflowRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := container(cmd, true)
		if err != nil {
			return err
		}
		defer c.Close()

		_, wf, ok := c.Registry.FindWorkflow(args[0])
		if !ok {
			return fmt.Errorf("%s: %w", args[0], entity.ErrWorkflowNotFound)
		}
		return fn(cmd, c, wf, args)
	}
}

type pageRun func(cmd *cobra.Command, c *di.Container, page *entity.PageDefinition, args []string) error

func withPage(fn pageRun) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := container(cmd, true)
		if err != nil {
			return err
		}
		defer c.Close()

		page, ok := c.Registry.Page(args[0])
		if !ok {
			return fmt.Errorf("page %q not in catalog", args[0])
		}
		return fn(cmd, c, page, args)
	}
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
