package cmd

import (
	"github.com/alecthomas/kong"

	"github.com/Alia5/loadergen/internal/log"
)

type LogConfig struct {
	Level  string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"LOADERGEN_LOG_LEVEL"`
	File   string `help:"Also write logs to this file" type:"path" env:"LOADERGEN_LOG_FILE"`
	Format string `help:"Log format; auto picks text on a terminal and JSON otherwise" enum:"auto,text,json" default:"auto" env:"LOADERGEN_LOG_FORMAT"`
}

func (l LogConfig) Config() log.Config {
	return log.Config{Level: l.Level, File: l.File, Format: l.Format}
}

// CLI is the root kong command tree.
type CLI struct {
	// Only declared so kong accepts the flag; main resolves it before parsing.
	ConfigFile string           `name:"config" help:"Configuration file (.json, .yaml/.yml or .toml)" type:"path" env:"LOADERGEN_CONFIG"`
	Log        LogConfig        `embed:"" prefix:"log."`
	Version    kong.VersionFlag `help:"Print the version and exit"`

	Generate Generate      `cmd:"" help:"Generate the loader dispatch sources from a registry document"`
	Classify Classify      `cmd:"" help:"Print how every command of a registry document is classified"`
	Config   ConfigCommand `cmd:"" help:"Configuration helpers"`
}
