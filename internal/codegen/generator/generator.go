package generator

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/loadergen/internal/codegen/classify"
	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/generator/loader"
	"github.com/Alia5/loadergen/internal/codegen/group"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// ManifestName is written next to the generated artifacts.
const ManifestName = "loadergen.manifest.yaml"

// ErrDrift is returned in check mode when an artifact on disk differs from
// what the current registry and rules produce.
var ErrDrift = errors.New("generated files are out of date")

type Config struct {
	Registry  string
	Rules     string
	OutputDir string
	// Targets selects artifacts by file name. Empty or "all" selects every one.
	Targets []string
	// Check compares instead of writing.
	Check bool
}

type Generator struct {
	cfg    Config
	logger *slog.Logger
}

// Artifact is one rendered output file.
type Artifact struct {
	Name    string
	Content []byte
}

type Manifest struct {
	Generator string          `yaml:"generator"`
	Registry  string          `yaml:"registry"`
	Rules     string          `yaml:"rules,omitempty"`
	Artifacts []ManifestEntry `yaml:"artifacts"`
}

type ManifestEntry struct {
	Name    string `yaml:"name"`
	Size    int    `yaml:"size"`
	BLAKE2b string `yaml:"blake2b"`
}

func New(cfg Config, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		logger: logger,
	}
}

// Digest is the hex BLAKE2b-256 of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Run renders the selected artifacts and either writes them together with
// the manifest or, in check mode, compares them with the files on disk.
func (g *Generator) Run() error {
	names, err := g.SelectTargets()
	if err != nil {
		return err
	}

	d, err := g.Load()
	if err != nil {
		return err
	}

	artifacts, err := g.RenderAll(d, names)
	if err != nil {
		return err
	}

	if g.cfg.Check {
		return g.check(artifacts)
	}
	return g.write(artifacts)
}

// SelectTargets resolves the configured target list against the known
// artifacts, keeping the fixed artifact order.
func (g *Generator) SelectTargets() ([]string, error) {
	if len(g.cfg.Targets) == 0 || slices.Contains(g.cfg.Targets, "all") {
		return loader.Targets(), nil
	}
	for _, name := range g.cfg.Targets {
		if !loader.IsTarget(name) {
			return nil, fmt.Errorf("%w '%s' (supported: %v)", loader.ErrUnknownTarget, name, loader.Targets())
		}
	}
	var out []string
	for _, name := range loader.Targets() {
		if slices.Contains(g.cfg.Targets, name) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Load reads the rules and the registry document and builds the classified,
// grouped model.
func (g *Generator) Load() (*meta.Dispatch, error) {
	r, err := rules.Load(g.cfg.Rules)
	if err != nil {
		return nil, err
	}
	if g.cfg.Rules != "" {
		g.logger.Info("Loaded rules overrides", "file", g.cfg.Rules)
	}

	g.logger.Debug("Reading registry document", "file", g.cfg.Registry)
	doc, err := registry.LoadDocument(g.cfg.Registry)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Build(doc, r.RegistryOptions(g.logger))
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	g.logger.Info("Built registry",
		"commands", len(reg.Commands()),
		"features", len(reg.Extensions()),
		"handles", len(reg.Handles()))

	d := group.Build(reg, classify.New(r))
	g.logger.Info("Grouped commands",
		"versions", len(d.CoreGroups),
		"extensions", len(d.ExtGroups),
		"trackedDeviceExtensions", len(d.TrackedDeviceExtensions))
	return d, nil
}

func (g *Generator) RenderAll(d *meta.Dispatch, names []string) ([]Artifact, error) {
	out := make([]Artifact, 0, len(names))
	for _, name := range names {
		g.logger.Debug("Rendering artifact", "target", name)
		content, err := loader.Render(d, name)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out = append(out, Artifact{Name: name, Content: content})
	}
	return out, nil
}

func (g *Generator) write(artifacts []Artifact) error {
	if err := os.MkdirAll(g.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, a := range artifacts {
		path := filepath.Join(g.cfg.OutputDir, a.Name)
		if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, a.Content) {
			g.logger.Debug("Artifact unchanged", "file", path)
			continue
		}
		if err := os.WriteFile(path, a.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", a.Name, err)
		}
		g.logger.Info("Wrote artifact", "file", path, "bytes", len(a.Content))
	}

	manifest, err := g.manifest(artifacts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(g.cfg.OutputDir, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	g.logger.Info("Generation complete", "output", g.cfg.OutputDir, "artifacts", len(artifacts))
	return nil
}

func (g *Generator) manifest(artifacts []Artifact) (*Manifest, error) {
	version, err := common.GetVersion()
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		Generator: common.ToolName + " " + version,
		Registry:  filepath.Base(g.cfg.Registry),
	}
	if g.cfg.Rules != "" {
		m.Rules = filepath.Base(g.cfg.Rules)
	}
	for _, a := range artifacts {
		m.Artifacts = append(m.Artifacts, ManifestEntry{
			Name:    a.Name,
			Size:    len(a.Content),
			BLAKE2b: Digest(a.Content),
		})
	}
	return m, nil
}

// ReadManifest decodes the manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func (g *Generator) check(artifacts []Artifact) error {
	g.checkManifestRelease()

	var stale []string
	for _, a := range artifacts {
		path := filepath.Join(g.cfg.OutputDir, a.Name)
		old, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			g.logger.Warn("Artifact missing", "file", path)
			stale = append(stale, a.Name)
		case err != nil:
			return fmt.Errorf("read %s: %w", a.Name, err)
		case !common.IsGenerated(old):
			g.logger.Warn("Artifact was not generated by "+common.ToolName, "file", path)
			stale = append(stale, a.Name)
		case Digest(old) != Digest(a.Content):
			g.logger.Warn("Artifact differs", "file", path, "want", Digest(a.Content), "got", Digest(old))
			stale = append(stale, a.Name)
		default:
			g.logger.Debug("Artifact up to date", "file", path)
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("%w: %s", ErrDrift, strings.Join(stale, ", "))
	}
	g.logger.Info("Generated files are up to date", "artifacts", len(artifacts))
	return nil
}

// checkManifestRelease warns when the output was last written by another
// release line, whose formatting may legitimately differ.
func (g *Generator) checkManifestRelease() {
	m, err := ReadManifest(g.cfg.OutputDir)
	if err != nil {
		g.logger.Debug("No readable manifest", "error", err)
		return
	}
	version, err := common.GetVersion()
	if err != nil {
		return
	}
	_, written, _ := strings.Cut(m.Generator, " ")
	if !common.SameRelease(written, version) {
		g.logger.Warn("Output was generated by a different release", "manifest", m.Generator, "current", version)
	}
}
