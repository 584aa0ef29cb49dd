package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	toml "github.com/pelletier/go-toml"
	"github.com/samber/lo"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/loadergen/internal/codegen/generator"
	"github.com/Alia5/loadergen/internal/codegen/meta"
)

// Classify prints the per-command decisions without generating anything.
type Classify struct {
	Registry string   `help:"Registry document to classify (.json, .yaml/.yml or .toml)" required:"" type:"path" env:"LOADERGEN_REGISTRY"`
	Rules    string   `help:"Optional rules overrides file" type:"path" env:"LOADERGEN_RULES"`
	Format   string   `help:"Output format" enum:"json,yaml,toml" default:"yaml"`
	Commands []string `help:"Only report these commands"`
	Output   string   `help:"Destination file path (defaults to stdout)" type:"path"`
}

type classifiedCommand struct {
	Name               string `json:"name" yaml:"name" toml:"name"`
	Group              string `json:"group" yaml:"group" toml:"group"`
	Class              string `json:"class" yaml:"class" toml:"class"`
	Trampoline         bool   `json:"trampoline" yaml:"trampoline" toml:"trampoline"`
	Terminator         bool   `json:"terminator" yaml:"terminator" toml:"terminator"`
	TerminatorDispatch bool   `json:"terminatorDispatch" yaml:"terminatorDispatch" toml:"terminatorDispatch"`
	DeviceExtOverride  bool   `json:"deviceExtOverride" yaml:"deviceExtOverride" toml:"deviceExtOverride"`
	Alias              string `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`
	AliasExtension     string `json:"aliasExtension,omitempty" yaml:"aliasExtension,omitempty" toml:"aliasExtension,omitempty"`
}

type classification struct {
	Commands []classifiedCommand `json:"commands" yaml:"commands" toml:"commands"`
}

// Run is called by Kong when the classify command is executed.
func (c *Classify) Run(logger *slog.Logger) error {
	d, err := generator.New(generator.Config{Registry: c.Registry, Rules: c.Rules}, logger).Load()
	if err != nil {
		return err
	}

	out := classify(d, c.Commands)
	if len(c.Commands) > 0 && len(out.Commands) == 0 {
		logger.Warn("None of the requested commands are in the registry", "commands", c.Commands)
	}

	var w io.Writer = os.Stdout
	if c.Output != "" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("create %s: %w", c.Output, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return encodeClassification(w, c.Format, out)
}

func classify(d *meta.Dispatch, only []string) classification {
	var out classification
	add := func(group string, rec meta.Record) {
		if len(only) > 0 && !lo.Contains(only, rec.Name()) {
			return
		}
		out.Commands = append(out.Commands, classifiedCommand{
			Name:               rec.Name(),
			Group:              group,
			Class:              rec.Command.Class.String(),
			Trampoline:         rec.NeedsTrampoline,
			Terminator:         rec.NeedsTerminator,
			TerminatorDispatch: rec.NeedsTerminatorDispatch,
			DeviceExtOverride:  rec.NeedsDeviceExtOverride,
			Alias:              rec.Alias,
			AliasExtension:     rec.AliasExtension,
		})
	}
	for _, g := range d.CoreGroups {
		for _, rec := range g.InstanceCommands {
			add(g.Name, rec)
		}
		for _, rec := range g.DeviceCommands {
			add(g.Name, rec)
		}
	}
	for _, g := range d.ExtGroups {
		for _, rec := range g.Commands {
			add(g.Name, rec)
		}
	}
	return out
}

func encodeClassification(w io.Writer, format string, out classification) error {
	var data []byte
	var err error
	switch normalizeFormat(format) {
	case "json":
		data, err = json.MarshalIndent(out, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(out)
	case "toml":
		data, err = toml.Marshal(out)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
