package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"
)

// Document is the already-parsed registry model handed over by the ingestion
// step. It mirrors the registry closely and is normalized by Build.
type Document struct {
	Handles  []HandleDoc  `json:"handles" yaml:"handles" toml:"handles"`
	Commands []CommandDoc `json:"commands" yaml:"commands" toml:"commands"`
	Features []FeatureDoc `json:"features" yaml:"features" toml:"features"`
}

type HandleDoc struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	Alias        string   `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`
	Dispatchable bool     `json:"dispatchable" yaml:"dispatchable" toml:"dispatchable"`
	Parents      []string `json:"parents,omitempty" yaml:"parents,omitempty" toml:"parents,omitempty"`
}

type ParamDoc struct {
	Type      string `json:"type" yaml:"type" toml:"type"`
	Name      string `json:"name" yaml:"name" toml:"name"`
	CDecl     string `json:"cdecl,omitempty" yaml:"cdecl,omitempty" toml:"cdecl,omitempty"`
	Const     bool   `json:"const,omitempty" yaml:"const,omitempty" toml:"const,omitempty"`
	Pointer   bool   `json:"pointer,omitempty" yaml:"pointer,omitempty" toml:"pointer,omitempty"`
	ArrayDims int    `json:"arrayDims,omitempty" yaml:"arrayDims,omitempty" toml:"arrayDims,omitempty"`
	Len       string `json:"len,omitempty" yaml:"len,omitempty" toml:"len,omitempty"`
}

type CommandDoc struct {
	Name       string     `json:"name" yaml:"name" toml:"name"`
	Alias      string     `json:"alias,omitempty" yaml:"alias,omitempty" toml:"alias,omitempty"`
	ReturnType string     `json:"returnType,omitempty" yaml:"returnType,omitempty" toml:"returnType,omitempty"`
	CDecl      string     `json:"cdecl,omitempty" yaml:"cdecl,omitempty" toml:"cdecl,omitempty"`
	Protect    string     `json:"protect,omitempty" yaml:"protect,omitempty" toml:"protect,omitempty"`
	Params     []ParamDoc `json:"params" yaml:"params" toml:"params"`
}

// RequireDoc is one <require> block of a feature. Extension holds the
// comma-separated list of extensions the block depends on.
type RequireDoc struct {
	Extension string   `json:"extension,omitempty" yaml:"extension,omitempty" toml:"extension,omitempty"`
	Commands  []string `json:"commands" yaml:"commands" toml:"commands"`
}

// FeatureDoc is either a core version (VK_VERSION_M_m) or an extension.
type FeatureDoc struct {
	Name     string       `json:"name" yaml:"name" toml:"name"`
	Type     string       `json:"type,omitempty" yaml:"type,omitempty" toml:"type,omitempty"`
	Define   string       `json:"define,omitempty" yaml:"define,omitempty" toml:"define,omitempty"`
	Protect  string       `json:"protect,omitempty" yaml:"protect,omitempty" toml:"protect,omitempty"`
	Requires string       `json:"requires,omitempty" yaml:"requires,omitempty" toml:"requires,omitempty"`
	Require  []RequireDoc `json:"require" yaml:"require" toml:"require"`
}

// LoadDocument reads a registry document, picking the decoder from the file
// extension. Unknown extensions are decoded as JSON.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry document: %w", err)
	}
	doc, err := DecodeDocument(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// FormatFromPath maps a file name to one of "json", "yaml" or "toml".
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	default:
		return "json"
	}
}

func DecodeDocument(data []byte, format string) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &doc)
	case "toml":
		err = toml.Unmarshal(data, &doc)
	case "json":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported registry format '%s'", format)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
