package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/loadergen/internal/cmd"
)

func TestFindUserConfig(t *testing.T) {
	t.Setenv("LOADERGEN_CONFIG", "")

	assert.Equal(t, "a.toml", findUserConfig([]string{"generate", "--config", "a.toml"}))
	assert.Equal(t, "b.yaml", findUserConfig([]string{"--config=b.yaml", "generate"}))
	assert.Equal(t, "", findUserConfig([]string{"generate", "--config"}))

	t.Setenv("LOADERGEN_CONFIG", "env.json")
	assert.Equal(t, "env.json", findUserConfig([]string{"generate"}))
	assert.Equal(t, "flag.json", findUserConfig([]string{"--config", "flag.json"}))
}

func TestParserOptionsReadUserConfig(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	path := filepath.Join(dir, "mine.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"output": "from-config", "check": true}`), 0o644))

	var cli cmd.CLI
	parser, err := kong.New(&cli, parserOptions(path)...)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"generate", "--registry", "registry.yaml"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from-config"), cli.Generate.Output)
	assert.True(t, cli.Generate.Check)

	_, err = parser.Parse([]string{"generate", "--registry", "registry.yaml", "--output", "flag"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flag"), cli.Generate.Output)
}
