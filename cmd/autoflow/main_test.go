package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags undoes what an earlier execute parsed into the globals.
func resetFlags() {
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	})
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPrefsCommands(t *testing.T) {
	store := filepath.Join(t.TempDir(), "prefs.json")

	out, err := execute(t, "prefs", "set", "zip-search", "auto", "on", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"auto": true`)

	out, err = execute(t, "prefs", "show", "zip-search", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"auto": true`)
	assert.Contains(t, out, `"source": "prefs"`)

	_, err = execute(t, "prefs", "set", "approve", "repeat", "on", "--store", store)
	assert.ErrorContains(t, err, "auto-repeat is not available for approve")

	out, err = execute(t, "prefs", "profile", "zip-search", "p3", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"active": "p3"`)

	_, err = execute(t, "prefs", "profile", "zip-search", "p7", "--store", store)
	assert.Error(t, err)

	out, err = execute(t, "prefs", "hide", "inventory", "approve", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, `"approve"`)

	_, err = execute(t, "prefs", "show", "nowhere", "--store", store)
	assert.ErrorContains(t, err, "workflow not found")

	raw, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "prefs:menu:inventory")
}

func TestRunOffline(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "inventory.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><body><div id="results"><li class="row">V1</li></div></body></html>`), 0o644))

	out, err := execute(t, "detect", "--html", page, "--url", "https://shop.example.com/inventory", "--ephemeral")
	require.NoError(t, err, out)
	assert.Contains(t, out, "inventory")
	assert.Contains(t, out, "zip-search")
	assert.NotContains(t, out, "summary")
}

func TestParseSwitch(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "1": true, "off": false, "false": false} {
		got, err := parseSwitch(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := parseSwitch("maybe")
	assert.Error(t, err)
}

func TestSnapshotOffline(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "saved.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><head><script>x()</script></head><body><div id="results" onclick="y()">ok</div></body></html>`), 0o644))

	out, err := execute(t, "snapshot", "--html", page, "--ephemeral")
	require.NoError(t, err, out)
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onclick")
	assert.Contains(t, out, `<div id="results">ok</div>`)
}

func TestPrefsMove(t *testing.T) {
	store := filepath.Join(t.TempDir(), "prefs.json")

	_, err := execute(t, "prefs", "hide", "inventory", "zip-search", "--store", store)
	require.NoError(t, err)

	out, err := execute(t, "prefs", "move", "inventory", "pick-yard", "0", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Ship to yard dropped at position 1 of 3.")
	assert.Contains(t, out, `"order": [
    "pick-yard",
    "zip-search",
    "approve",
    "copy-cars"
  ]`)

	out, err = execute(t, "prefs", "move", "inventory", "pick-yard", "0", "--store", store)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Order unchanged")
}
