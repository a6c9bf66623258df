package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func find(t *testing.T, root *cobra.Command, args ...string) *cobra.Command {
	t.Helper()
	cmd, _, err := root.Find(args)
	require.NoError(t, err)
	return cmd
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCommand()

	assert.Equal(t, "watch", find(t, root, "watch").Name())
	assert.Equal(t, "serve", find(t, root, "serve").Name())
	assert.Equal(t, "version", find(t, root, "version").Name())
}

func TestRootCommand_Flags(t *testing.T) {
	root := newRootCommand()

	for _, name := range []string{"endpoint", "headless"} {
		assert.NotNil(t, root.Flags().Lookup(name), "root --%s", name)
		assert.NotNil(t, find(t, root, "watch").Flags().Lookup(name), "watch --%s", name)
	}
	for _, name := range []string{"listen", "root"} {
		assert.NotNil(t, find(t, root, "serve").Flags().Lookup(name), "serve --%s", name)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
	assert.NotNil(t, root.PersistentFlags().ShorthandLookup("v"))
}

func TestCommonFlags(t *testing.T) {
	root := newRootCommand()
	watch := find(t, root, "watch")
	require.NoError(t, watch.ParseFlags([]string{"--config", "/tmp/w.toml", "-v"}))

	path, verbose := commonFlags(watch)
	assert.Equal(t, "/tmp/w.toml", path)
	assert.True(t, verbose)
}

func TestVersionCommand(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "watchwire dev\n", out.String())
}
