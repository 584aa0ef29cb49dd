package loader

import (
	"fmt"
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

const unknownCount = "UNKNOWN_COUNT_ITEM_PLEASE_EDIT_SCRIPT"

// SynthesizeTrampoline returns the definition of the application facing
// entry point for rec. ext is nil for core commands.
func SynthesizeTrampoline(d *meta.Dispatch, rec meta.Record, ext *meta.ExtGroup) string {
	e := newEmitter(d)
	e.trampoline(rec, ext)
	return e.String()
}

func (e *emitter) trampolinePrototypes() {
	e.write("// Extension interception for vkGetInstanceProcAddr function, so we can return\n")
	e.write("// the appropriate information for any instance extensions we know about.\n")
	e.write("bool extension_instance_gpa(struct loader_instance *ptr_instance, const char *name, void **addr);\n\n")
}

func (e *emitter) trampolineDefinitions() {
	for _, g := range e.d.CoreGroups {
		if !g.NeedsTrampoline {
			continue
		}
		e.write(coreHeader(g, false, false, "trampolines"))
		for _, rec := range g.InstanceCommands {
			if rec.NeedsTrampoline {
				e.trampoline(rec, nil)
			}
		}
		for _, rec := range g.DeviceCommands {
			if rec.NeedsTrampoline {
				e.trampoline(rec, nil)
			}
		}
	}

	for _, g := range e.d.ExtGroups {
		if !g.NeedsTrampoline {
			continue
		}
		e.write(extHeader(g, false, false, "trampolines"))
		e.ifdef(g.Protect)
		for _, rec := range g.Commands {
			if rec.NeedsTrampoline {
				e.trampoline(rec, g)
			}
		}
		e.endif(g.Protect)
	}
	e.write("\n")
}

func (e *emitter) trampoline(rec meta.Record, ext *meta.ExtGroup) {
	cmd := rec.Command
	isExt := ext != nil
	nullChecked := isExt && e.rules.NullCheckedExtensions.Has(ext.Name)
	aliasExt := e.aliasFallback(rec, nullChecked)
	setDispatch := !nullChecked && aliasExt == nil && e.returnsDispatchable(cmd)
	useTemp := setDispatch && cmd.HasReturn()

	prefix := "    "
	if cmd.HasReturn() {
		if useTemp {
			prefix += "temp = "
		} else {
			prefix += "return "
		}
	}

	e.write("\n")
	decl := openDecl(cmd.CDecl)
	if isExt {
		decl = strings.Replace(decl, "VKAPI_CALL vk", "VKAPI_CALL ", 1)
	} else {
		decl = strings.Replace(decl, "VKAPI_ATTR", "LOADER_EXPORT VKAPI_ATTR", 1)
	}
	e.write(decl)

	if len(cmd.Params) == 0 {
		e.write(notImplemented)
		e.write("}\n")
		return
	}

	if useTemp {
		e.printf("    %s temp;\n", cmd.ReturnType)
	}

	first := cmd.Params[0]
	switch cmd.HandleType {
	case rules.HandlePhysicalDevice:
		e.trampPhysDevPreamble(cmd.Name, first.Name)
	case rules.HandleInstance:
		e.instanceValidation(cmd.Name, first.Name)
	default:
		e.trampGenericPreamble(isExt, cmd.Name, first.Type, first.Name)
	}

	p := e.objectPatch(cmd)
	if p != nil {
		e.trampPatch(*p)
	}

	switch {
	case nullChecked:
		e.printf("    if (disp->%s != NULL) {\n", cmd.BaseName())
		e.write("    " + trampCall(cmd, cmd.BaseName(), prefix, p))
		if cmd.HasReturn() {
			e.write("    } else {\n")
			e.printf("        return %s;\n", zeroValue(cmd.ReturnType))
		}
		e.write("    }\n")
	case aliasExt != nil:
		e.printf("    const struct loader_instance *inst = ((struct loader_physical_device_tramp *)%s)->this_instance;\n", first.Name)
		e.printf("    if (inst != NULL && inst->inst_ext_enables.%s) {\n", aliasExt.VarName())
		e.write("    " + trampCall(cmd, common.StripAPIPrefix(rec.Alias), prefix, p))
		e.write("    } else {\n")
		e.write("    " + trampCall(cmd, cmd.BaseName(), prefix, p))
		e.write("    }\n")
	default:
		e.write(trampCall(cmd, cmd.BaseName(), prefix, p))
		if setDispatch {
			e.setDispatch(cmd)
		}
		if useTemp {
			e.write("    return temp;\n")
		}
	}
	e.write("}\n")
}

// aliasFallback returns the instance extension a physical-device trampoline
// may route through when the application enabled it instead of the core
// version.
func (e *emitter) aliasFallback(rec meta.Record, nullChecked bool) *meta.ExtGroup {
	if nullChecked || rec.Alias == "" || rec.AliasExtension == "" {
		return nil
	}
	if rec.Command.HandleType != rules.HandlePhysicalDevice {
		return nil
	}
	g, ok := e.d.ExtGroup(rec.AliasExtension)
	if !ok || !g.IsInstance() {
		return nil
	}
	return g
}

// returnsDispatchable reports whether the last parameter receives a freshly
// created dispatchable handle.
func (e *emitter) returnsDispatchable(cmd *registry.Command) bool {
	last, ok := cmd.LastParam()
	if !ok {
		return false
	}
	return last.Pointer && !last.Const && e.reg.IsDispatchable(last.Type)
}

func isArrayParam(p registry.Param) bool {
	if p.Len != "" || p.ArrayDims > 0 {
		return true
	}
	return !strings.HasSuffix(p.Type, "s") && strings.HasSuffix(p.Name, "s")
}

// arrayCount is the C expression bounding the handle array in p.
func arrayCount(cmd *registry.Command, p registry.Param) string {
	if p.Len == "" {
		return unknownCount
	}
	count, _, _ := strings.Cut(p.Len, ",")
	if lp, ok := findParam(cmd, count); ok && lp.Pointer {
		return "*" + count
	}
	return count
}

func (e *emitter) setDispatch(cmd *registry.Command) {
	last, _ := cmd.LastParam()
	depth := 1
	if cmd.ReturnsResult() {
		e.line(depth, "if (VK_SUCCESS == temp) {")
		depth++
	}
	if isArrayParam(last) {
		e.line(depth, fmt.Sprintf("for (uint32_t i = 0; i < %s; i++) {", arrayCount(cmd, last)))
		depth++
		e.line(depth, fmt.Sprintf("if (%s != NULL && %s[i] != NULL) {", last.Name, last.Name))
		e.line(depth+1, fmt.Sprintf("loader_set_dispatch(%s[i], disp);", last.Name))
	} else {
		e.line(depth, fmt.Sprintf("if (%s != NULL && *%s != NULL) {", last.Name, last.Name))
		e.line(depth+1, fmt.Sprintf("loader_set_dispatch(*%s, disp);", last.Name))
	}
	for ; depth >= 1; depth-- {
		e.line(depth, "}")
	}
}

// trampCall is the forwarding call into the next dispatch table.
func trampCall(cmd *registry.Command, slot, prefix string, patch *rules.ObjectPatch) string {
	callee := "disp->"
	if cmd.HandleType == rules.HandleInstance {
		callee = "inst->disp->"
	}
	args := make([]string, 0, len(cmd.Params))
	for _, p := range cmd.Params {
		switch {
		case p.Type == rules.HandlePhysicalDevice && cmd.HandleType == rules.HandlePhysicalDevice:
			args = append(args, "unwrapped_phys_dev")
		case patch != nil && p.Name == patch.Param:
			args = append(args, "&"+patch.Local)
		default:
			args = append(args, p.Name)
		}
	}
	return fmt.Sprintf("%s%s%s(%s);\n", prefix, callee, slot, strings.Join(args, ", "))
}

func (e *emitter) trampPhysDevPreamble(funcName, varName string) {
	e.write("    const VkLayerInstanceDispatchTable *disp;\n")
	e.printf("    VkPhysicalDevice unwrapped_phys_dev = loader_unwrap_physical_device(%s);\n", varName)
	e.write("    if (VK_NULL_HANDLE == unwrapped_phys_dev) {\n")
	e.write("        loader_log(NULL, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_VALIDATION_BIT, 0,\n")
	e.printf("                   \"%s: Invalid VkPhysicalDevice [VUID-%s-%s-parameter]\");\n", funcName, funcName, varName)
	e.write("        abort(); /* Intentionally fail so user can correct issue. */\n")
	e.write("    }\n")
	e.printf("    disp = loader_get_instance_layer_dispatch(%s);\n", varName)
}

// instanceValidation is shared by both sides; nothing generic can be said
// about an instance rooted command so the body is left for a human.
func (e *emitter) instanceValidation(funcName, varName string) {
	e.printf("    struct loader_instance *inst = loader_get_instance(%s);\n", varName)
	e.write("    if (NULL == inst) {\n")
	e.write("        loader_log(NULL, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_VALIDATION_BIT, 0,\n")
	e.printf("                   \"%s: Invalid VkInstance [VUID-%s-%s-parameter]\");\n", funcName, funcName, varName)
	e.write("        abort(); /* Intentionally fail so user can correct issue. */\n")
	e.write("    }\n")
	e.write(notImplemented)
}

func (e *emitter) trampGenericPreamble(isExt bool, funcName, varType, varName string) {
	e.printf("    const VkLayerDispatchTable *disp = loader_get_dispatch(%s);\n", varName)
	if !isExt {
		return
	}
	e.write("    if (NULL == disp) {\n")
	e.write("        loader_log(NULL, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_VALIDATION_BIT, 0,\n")
	e.printf("                   \"%s: Invalid %s [VUID-%s-%s-parameter]\");\n", funcName, varType, funcName, varName)
	e.write("        abort(); /* Intentionally fail so user can correct issue. */\n")
	e.write("    }\n")
}

// trampPatch copies the info struct and swaps a wrapped physical device for
// the one the next layer knows.
func (e *emitter) trampPatch(p rules.ObjectPatch) {
	e.printf("    %s %s;\n", p.InfoType, p.Local)
	e.printf("    memcpy(&%s, %s, sizeof(%s));\n", p.Local, p.Param, p.InfoType)
	e.write("    // If this is a physical device, we have to replace it with the proper one for the next call.\n")
	e.printf("    if (%s->objectType == %s) {\n", p.Param, p.PhysicalDeviceType)
	e.printf("        struct loader_physical_device_tramp *phys_dev_tramp = (struct loader_physical_device_tramp *)(uintptr_t)%s->%s;\n", p.Param, p.ObjectField)
	e.printf("        %s.%s = (uint64_t)(uintptr_t)phys_dev_tramp->phys_dev;\n", p.Local, p.ObjectField)
	e.write("    }\n")
}

// extensionInstanceGPA emits the vkGetInstanceProcAddr interception for
// extension commands.
func (e *emitter) extensionInstanceGPA() {
	e.write("// GPA helpers for extensions\n")
	e.write("bool extension_instance_gpa(struct loader_instance *ptr_instance, const char *name, void **addr) {\n")
	e.write("    *addr = NULL;\n\n")

	for _, g := range e.d.ExtGroups {
		if e.rules.WSIExtensions.Has(g.Name) || e.rules.GIPAAvoidExtensions.Has(g.Name) ||
			e.rules.IsExcludedName(g.Name) || len(g.Commands) == 0 {
			continue
		}
		e.write(extComment(g))
		e.ifdef(g.Protect)
		for _, rec := range g.Commands {
			if e.rules.GIPAAvoidCommands.Has(rec.Name()) {
				continue
			}
			e.gipaEntry(g, rec)
		}
		e.endif(g.Protect)
	}

	e.write("    return false;\n")
	e.write("}\n\n")
}

func (e *emitter) gipaEntry(g *meta.ExtGroup, rec meta.Record) {
	// Extension trampolines drop the "vk" prefix; a core alias target is
	// the exported core trampoline and keeps it.
	target := rec.Command.BaseName()
	if rec.Alias != "" {
		target = rec.Alias
		if rec.AliasExtension != "" {
			target = common.StripAPIPrefix(rec.Alias)
		}
	}

	e.printf("    if (!strcmp(\"%s\", name)) {\n", rec.Name())
	if g.IsInstance() {
		e.printf("        *addr = (ptr_instance->inst_ext_enables.%s == 1)\n", g.VarName())
		e.printf("                     ? (void *)%s\n", target)
		e.write("                     : NULL;\n")
	} else {
		e.printf("        *addr = (void *)%s;\n", target)
	}
	e.write("        return true;\n")
	e.write("    }\n")
}
