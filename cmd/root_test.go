package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"fetch", "isochrone", "stats", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "stopsearch", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestFetchCommand_Flags(t *testing.T) {
	for _, name := range []string{"year", "months", "out", "formats", "postgis", "concurrency"} {
		require.NotNil(t, fetchCmd.Flags().Lookup(name), "fetch should have --%s", name)
	}
	assert.Equal(t, "false", fetchCmd.Flags().Lookup("postgis").DefValue)
}

func TestIsochroneCommand_Flags(t *testing.T) {
	flag := isochroneCmd.Flags().Lookup("name")
	require.NotNil(t, flag)
	assert.Equal(t, "isochrone", flag.DefValue)
	require.NotNil(t, isochroneCmd.Flags().Lookup("minutes"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
	require.NotNil(t, serveCmd.Flags().Lookup("dir"))
}
