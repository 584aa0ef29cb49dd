package cmd_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/loadergen/internal/cmd"
	"github.com/Alia5/loadergen/internal/codegen/generator"
	"github.com/Alia5/loadergen/internal/codegen/generator/loader"
	"github.com/Alia5/loadergen/internal/codegen/rules"
	fixture "github.com/Alia5/loadergen/internal/testing"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestCLIParses(t *testing.T) {
	var cli cmd.CLI
	parser, err := kong.New(&cli, kong.Name("loadergen"), kong.Vars{"version": "test"})
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{
		"generate",
		"--registry", fixture.RegistryFixture(),
		"--targets", loader.TrampolinesSource + "," + loader.TerminatorsSource,
		"--check",
		"--log.level", "debug",
	})
	require.NoError(t, err)
	assert.Equal(t, "generate", ctx.Command())
	assert.Equal(t, []string{loader.TrampolinesSource, loader.TerminatorsSource}, cli.Generate.Targets)
	assert.True(t, cli.Generate.Check)
	assert.Equal(t, "debug", cli.Log.Level)
	assert.Equal(t, "auto", cli.Log.Format)

	_, err = parser.Parse([]string{"generate", "--registry", "x.yaml", "--log.format", "xml"})
	assert.Error(t, err)
}

func TestGenerateRun(t *testing.T) {
	dir := t.TempDir()
	g := cmd.Generate{Registry: fixture.RegistryFixture(), Output: dir, Targets: []string{"all"}}
	require.NoError(t, g.Run(discard()))

	for _, name := range loader.Targets() {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.FileExists(t, filepath.Join(dir, generator.ManifestName))

	g.Check = true
	require.NoError(t, g.Run(discard()))
}

func TestClassifyRun(t *testing.T) {
	tests := []struct {
		format string
		decode func([]byte, any) error
	}{
		{"yaml", yaml.Unmarshal},
		{"json", json.Unmarshal},
		{"toml", toml.Unmarshal},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "classified."+tt.format)
			c := cmd.Classify{
				Registry: fixture.RegistryFixture(),
				Format:   tt.format,
				Commands: []string{"vkGetDeviceQueue", "vkGetPhysicalDeviceFeatures2"},
				Output:   out,
			}
			require.NoError(t, c.Run(discard()))

			data, err := os.ReadFile(out)
			require.NoError(t, err)

			var got struct {
				Commands []struct {
					Name           string `json:"name" yaml:"name" toml:"name"`
					Group          string `json:"group" yaml:"group" toml:"group"`
					Class          string `json:"class" yaml:"class" toml:"class"`
					Trampoline     bool   `json:"trampoline" yaml:"trampoline" toml:"trampoline"`
					Terminator     bool   `json:"terminator" yaml:"terminator" toml:"terminator"`
					Alias          string `json:"alias" yaml:"alias" toml:"alias"`
					AliasExtension string `json:"aliasExtension" yaml:"aliasExtension" toml:"aliasExtension"`
				} `json:"commands" yaml:"commands" toml:"commands"`
			}
			require.NoError(t, tt.decode(data, &got))
			require.Len(t, got.Commands, 2)

			queue := got.Commands[0]
			assert.Equal(t, "vkGetDeviceQueue", queue.Name)
			assert.Equal(t, "VK_VERSION_1_0", queue.Group)
			assert.Equal(t, "device", queue.Class)
			assert.True(t, queue.Trampoline)
			assert.False(t, queue.Terminator)

			features := got.Commands[1]
			assert.Equal(t, "VK_VERSION_1_1", features.Group)
			assert.Equal(t, "instance", features.Class)
			assert.Equal(t, "vkGetPhysicalDeviceFeatures2KHR", features.Alias)
			assert.Equal(t, "VK_KHR_get_physical_device_properties2", features.AliasExtension)
		})
	}
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()

	dest := filepath.Join(dir, "generate.yaml")
	require.NoError(t, (&cmd.ConfigInit{Command: "generate", Format: "yaml", Output: dest}).Run())

	var cfg map[string]any
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "./generated", cfg["output"])
	assert.Equal(t, []any{"all"}, cfg["targets"])
	assert.Equal(t, false, cfg["check"])
	assert.Contains(t, cfg, "registry")

	err = (&cmd.ConfigInit{Command: "generate", Format: "yaml", Output: dest}).Run()
	assert.Error(t, err)
	require.NoError(t, (&cmd.ConfigInit{Command: "generate", Format: "yaml", Output: dest, Force: true}).Run())

	assert.Error(t, (&cmd.ConfigInit{Command: "generate", Format: "ini", Output: dest, Force: true}).Run())
}

func TestConfigInitRulesRoundTrips(t *testing.T) {
	for _, format := range []string{"json", "yaml", "toml"} {
		t.Run(format, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "rules."+format)
			require.NoError(t, (&cmd.ConfigInit{Command: "rules", Format: format, Output: dest}).Run())

			r, err := rules.Load(dest)
			require.NoError(t, err)
			def := rules.Default()
			assert.Equal(t, def.ManualCommands.Values(), r.ManualCommands.Values())
			assert.Equal(t, def.ObjectPatches, r.ObjectPatches)
			assert.Equal(t, def.VersionPromotedDeviceExtensions, r.VersionPromotedDeviceExtensions)
			assert.Equal(t, def.ExcludedNameFragment, r.ExcludedNameFragment)
		})
	}
}
