package cmd

import (
	"bytes"
	"context"
	"os"
	"testing"

	log "github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testOptions() *CommonOptions {
	logger := log.New(log.ConsoleWriter{Out: os.Stderr})

	return NewCommonOptions(
		WithContext(context.Background()),
		WithLogger(logger),
	)
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd(testOptions())
	require.NotNil(t, cmd)

	require.Equal(t, "adaprof", cmd.Name())
	require.Contains(t, cmd.Short, "adaptive statistical profiler")
	require.True(t, cmd.HasSubCommands())
	require.True(t, cmd.DisableAutoGenTag)
}

func TestRootCmdSubcommands(t *testing.T) {
	cmd := NewRootCmd(testOptions())

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Contains(t, names, "profile")
}

func TestRootCmdLogLevelFlag(t *testing.T) {
	cmd := NewRootCmd(testOptions())

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	require.Equal(t, "string", flag.Value.Type())
	require.Equal(t, "info", flag.DefValue)
}

func TestRootCmdHelp(t *testing.T) {
	cmd := NewRootCmd(testOptions())

	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	help := output.String()
	require.Contains(t, help, "adaprof")
	require.Contains(t, help, "Available Commands:")
	require.Contains(t, help, "profile")
}

func TestRootCmdInvalidFlag(t *testing.T) {
	cmd := NewRootCmd(testOptions())

	var output bytes.Buffer
	cmd.SetErr(&output)
	cmd.SetArgs([]string{"--invalid-flag"})

	require.Error(t, cmd.Execute())
	require.Contains(t, output.String(), "unknown flag")
}
