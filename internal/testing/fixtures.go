package testing

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Alia5/loadergen/internal/codegen/classify"
	"github.com/Alia5/loadergen/internal/codegen/group"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// RegistryFixture returns the path of the shared YAML registry fixture.
func RegistryFixture() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "codegen", "registry", "testdata", "registry.yaml")
}

// LoadDocument decodes the shared fixture. Each call returns a fresh copy the
// caller may modify before building.
func LoadDocument(t *testing.T) *registry.Document {
	t.Helper()
	doc, err := registry.LoadDocument(RegistryFixture())
	if err != nil {
		t.Fatalf("load registry fixture: %v", err)
	}
	return doc
}

// BuildRegistry builds doc with the ingestion options of r.
func BuildRegistry(t *testing.T, doc *registry.Document, r *rules.Rules) *registry.Registry {
	t.Helper()
	reg, err := registry.Build(doc, r.RegistryOptions(nil))
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// BuildDispatch runs the whole model pipeline over the fixture with the
// default rules.
func BuildDispatch(t *testing.T) *meta.Dispatch {
	t.Helper()
	r := rules.Default()
	reg := BuildRegistry(t, LoadDocument(t), r)
	return group.Build(reg, classify.New(r))
}

// FindRecord looks a command up in every group of d.
func FindRecord(t *testing.T, d *meta.Dispatch, name string) meta.Record {
	t.Helper()
	for _, rec := range d.Records() {
		if rec.Name() == name {
			return rec
		}
	}
	t.Fatalf("no record for %s", name)
	return meta.Record{}
}
