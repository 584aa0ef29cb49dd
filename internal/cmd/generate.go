package cmd

import (
	"log/slog"

	"github.com/Alia5/loadergen/internal/codegen/generator"
)

type Generate struct {
	Registry string   `help:"Registry document to generate from (.json, .yaml/.yml or .toml)" required:"" type:"path" env:"LOADERGEN_REGISTRY"`
	Rules    string   `help:"Optional rules overrides file; lists present in it replace the built-in lists" type:"path" env:"LOADERGEN_RULES"`
	Output   string   `help:"Output directory for the generated loader sources" default:"./generated" type:"path" env:"LOADERGEN_OUTPUT"`
	Targets  []string `help:"Artifacts to generate by file name, or 'all'" default:"all" env:"LOADERGEN_TARGETS"`
	Check    bool     `help:"Compare against the files in the output directory instead of writing; fails on drift" env:"LOADERGEN_CHECK"`
}

func (g *Generate) config() generator.Config {
	return generator.Config{
		Registry:  g.Registry,
		Rules:     g.Rules,
		OutputDir: g.Output,
		Targets:   g.Targets,
		Check:     g.Check,
	}
}

// Run is called by Kong when the generate command is executed.
func (g *Generate) Run(logger *slog.Logger) error {
	logger.Info("Starting loader code generation", "registry", g.Registry, "output", g.Output, "targets", g.Targets, "check", g.Check)
	return generator.New(g.config(), logger).Run()
}
