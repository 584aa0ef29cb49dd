package loader

import (
	"fmt"
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/classify"
	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// emitter accumulates the body of one artifact.
type emitter struct {
	d      *meta.Dispatch
	rules  *rules.Rules
	reg    *registry.Registry
	engine *classify.Engine
	b      strings.Builder
}

func newEmitter(d *meta.Dispatch) *emitter {
	r := d.Rules
	if r == nil {
		r = rules.Default()
	}
	return &emitter{d: d, rules: r, reg: d.Registry, engine: classify.New(r)}
}

func (e *emitter) String() string { return e.b.String() }

func (e *emitter) write(s string) { e.b.WriteString(s) }

func (e *emitter) printf(format string, args ...any) {
	e.b.WriteString(fmt.Sprintf(format, args...))
}

// line writes s at the given indentation depth, four spaces per level.
func (e *emitter) line(depth int, s string) {
	e.b.WriteString(strings.Repeat("    ", depth))
	e.b.WriteString(s)
	e.b.WriteString("\n")
}

func (e *emitter) ifdef(protect string) { e.write(ifdefLine(protect)) }

func (e *emitter) endif(protect string) { e.write(endifLine(protect)) }

func (e *emitter) isInstanceType(handleType, extName string) bool {
	return e.engine.IsInstanceType(handleType, extName)
}

func coreHeader(g *meta.CoreGroup, small, indent bool, what string) string {
	return common.SectionHeader(small, indent, common.CoreSectionTitle(g.Major, g.Minor, what))
}

func extHeader(g *meta.ExtGroup, small, indent bool, what string) string {
	return common.SectionHeader(small, indent, common.ExtSectionTitle(string(g.Type), g.Name, what))
}

func coreComment(g *meta.CoreGroup) string {
	return common.CommandsComment(common.VersionLabel(g.Major, g.Minor))
}

func extComment(g *meta.ExtGroup) string {
	return common.CommandsComment(g.Name + " extension")
}

// openDecl turns a prototype into the opening line of a definition.
func openDecl(cdecl string) string {
	return strings.TrimSuffix(strings.TrimSpace(cdecl), ";") + " {\n"
}

// flattenDecl collapses a multi-line prototype onto one line.
func flattenDecl(cdecl string) string {
	return strings.Join(strings.Fields(cdecl), " ")
}

func terminatorDecl(cdecl string) string {
	return strings.Replace(cdecl, "VKAPI_CALL vk", "VKAPI_CALL terminator_", 1)
}

// zeroValue is what a guarded call returns when the next link is missing.
func zeroValue(returnType string) string {
	switch {
	case returnType == rules.ResultType:
		return "VK_SUCCESS"
	case returnType == "VkBool32":
		return "VK_FALSE"
	case strings.HasPrefix(returnType, "PFN_"), strings.HasSuffix(returnType, "*"):
		return "NULL"
	default:
		return "0"
	}
}

func findParam(cmd *registry.Command, name string) (registry.Param, bool) {
	for _, p := range cmd.Params {
		if p.Name == name {
			return p, true
		}
	}
	return registry.Param{}, false
}

// objectPatch returns the handle patch for cmd, if one applies and the
// command really takes the info parameter it rewrites.
func (e *emitter) objectPatch(cmd *registry.Command) *rules.ObjectPatch {
	p, ok := e.rules.ObjectPatchFor(cmd.Name)
	if !ok {
		return nil
	}
	if _, has := findParam(cmd, p.Param); !has {
		return nil
	}
	return &p
}

const notImplemented = "#error(\"Not implemented. Likely needs to be manually generated!\");\n"
