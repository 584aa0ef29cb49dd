package main

import (
	"os"
	"strings"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"

	"github.com/Alia5/loadergen/internal/cmd"
	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/configpaths"
	"github.com/Alia5/loadergen/internal/log"
)

const description = "Synthesizes the loader's trampolines, terminators and dispatch tables from a registry document"

func main() {
	var cli cmd.CLI
	ctx := kong.Parse(&cli, parserOptions(findUserConfig(os.Args[1:]))...)

	logger, closeLog, err := log.New(cli.Log.Config(), os.Stderr)
	ctx.FatalIfErrorf(err)
	ctx.Bind(logger)

	err = ctx.Run()
	_ = closeLog()
	ctx.FatalIfErrorf(err)
}

// parserOptions wires the config files found for userConfig into kong.
// Earlier files win, and flags and env vars beat every file.
func parserOptions(userConfig string) []kong.Option {
	version, err := common.GetVersion()
	if err != nil {
		version = common.Version
	}
	jsonPaths, yamlPaths, tomlPaths := configpaths.ConfigCandidatePaths(userConfig)
	return []kong.Option{
		kong.Name(common.ToolName),
		kong.Description(description),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
	}
}

// findUserConfig has to run before kong, which needs the file list up front.
func findUserConfig(args []string) string {
	for i, a := range args {
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return os.Getenv("LOADERGEN_CONFIG")
}
