package loader

import (
	"fmt"
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// SynthesizeTerminator returns the definition of the innermost loader
// function forwarding rec to a driver. extType is the owning extension's
// type, empty for core commands.
func SynthesizeTerminator(d *meta.Dispatch, rec meta.Record, extType registry.ExtensionType) string {
	e := newEmitter(d)
	e.terminator(rec, extType)
	return e.String()
}

func (e *emitter) terminatorDefinitions() {
	for _, g := range e.d.CoreGroups {
		if !g.NeedsTerminator {
			continue
		}
		e.write(coreHeader(g, false, false, "terminators"))
		for _, rec := range g.InstanceCommands {
			if rec.NeedsTerminator {
				e.terminator(rec, registry.ExtensionCore)
			}
		}
		for _, rec := range g.DeviceCommands {
			if rec.NeedsTerminator {
				e.terminator(rec, registry.ExtensionCore)
			}
		}
	}

	for _, g := range e.d.ExtGroups {
		if !g.NeedsTerminator {
			continue
		}
		printed := false
		for _, rec := range g.Commands {
			if !rec.NeedsTerminator || rec.HasAlias() {
				continue
			}
			if !printed {
				e.write(extHeader(g, false, false, "terminators"))
				e.ifdef(g.Protect)
				printed = true
			}
			e.terminator(rec, g.Type)
		}
		if printed {
			e.endif(g.Protect)
		}
	}
	e.write("\n")
}

// surfaceRef describes how a terminator reaches the surface it has to
// translate.
type surfaceRef struct {
	// expr evaluates to the application's VkSurfaceKHR.
	expr string
	// info is set when the surface travels inside a surface-info struct
	// that has to be copied before it can be patched.
	info bool
}

func findSurface(cmd *registry.Command) *surfaceRef {
	var ref *surfaceRef
	for _, p := range cmd.Params {
		switch p.Type {
		case rules.HandleSurface:
			ref = &surfaceRef{expr: p.Name}
		case rules.TypeSurfaceInfo:
			ref = &surfaceRef{expr: p.Name + "->surface", info: true}
		}
	}
	return ref
}

func (e *emitter) terminator(rec meta.Record, extType registry.ExtensionType) {
	cmd := rec.Command

	e.write("\n")
	e.write(terminatorDecl(openDecl(cmd.CDecl)))

	if len(cmd.Params) == 0 {
		e.write(notImplemented)
		e.write("}\n")
		return
	}

	surface := findSurface(cmd)
	patch := e.objectPatch(cmd)
	first := cmd.Params[0]

	switch {
	case cmd.HandleType == rules.HandlePhysicalDevice:
		e.termPhysDev(cmd, extType, surface, patch)
	case cmd.HandleType == rules.HandleInstance:
		e.instanceValidation(cmd.Name, first.Name)
		e.write(termCall(cmd, "    "+returnPrefix(cmd), "inst->", false, patch))
	case surface != nil:
		e.termDeviceSurface(cmd, surface, patch)
	default:
		e.termDevice(cmd, patch)
	}
	e.write("}\n")
}

func returnPrefix(cmd *registry.Command) string {
	if cmd.HasReturn() {
		return "return "
	}
	return ""
}

// termCall forwards into the driver table. real selects the translated
// surface arguments.
func termCall(cmd *registry.Command, prefix, owner string, real bool, patch *rules.ObjectPatch) string {
	args := make([]string, 0, len(cmd.Params))
	for _, p := range cmd.Params {
		switch {
		case p.Type == rules.HandlePhysicalDevice:
			args = append(args, "phys_dev_term->phys_dev")
		case real && p.Type == rules.HandleSurface:
			args = append(args, "icd_surface->real_icd_surfaces[icd_index]")
		case real && p.Type == rules.TypeSurfaceInfo:
			args = append(args, "&info_copy")
		case patch != nil && p.Name == patch.Param:
			args = append(args, "&"+patch.Local)
		default:
			args = append(args, p.Name)
		}
	}
	return fmt.Sprintf("%s%sicd_term->dispatch.%s(%s);\n", prefix, owner, cmd.BaseName(), strings.Join(args, ", "))
}

func (e *emitter) termPhysDev(cmd *registry.Command, extType registry.ExtensionType, surface *surfaceRef, patch *rules.ObjectPatch) {
	base := cmd.BaseName()
	e.printf("    struct loader_physical_device_term *phys_dev_term = (struct loader_physical_device_term *)%s;\n", cmd.Params[0].Name)
	e.write("    struct loader_icd_term *icd_term = phys_dev_term->this_icd_term;\n")
	e.printf("    if (NULL == icd_term->dispatch.%s) {\n", base)
	e.write("        loader_log(icd_term->this_instance, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_DRIVER_BIT, 0,\n")
	e.printf("                   \"Driver %%s with VkPhysicalDevice \\\"%%s\\\" does not support %s\",\n", base)
	e.write("                    icd_term->scanned_icd->lib_name, phys_dev_term->properties.deviceName);\n")
	switch {
	case extType == registry.ExtensionInstance && cmd.ReturnsResult():
		e.write("        return VK_ERROR_INITIALIZATION_FAILED;\n")
	case cmd.HasReturn():
		e.printf("        return %s;\n", zeroValue(cmd.ReturnType))
	default:
		e.write("        return;\n")
	}
	e.write("    }\n")

	if surface == nil {
		e.write(termCall(cmd, "    "+returnPrefix(cmd), "", false, patch))
		return
	}
	e.printf("    VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)(%s);\n", surface.expr)
	e.write("    uint8_t icd_index = phys_dev_term->icd_index;\n")
	e.realSurfaceCall(cmd, surface, patch, 1)
	if cmd.HasReturn() {
		e.printf("    return %s;\n", zeroValue(cmd.ReturnType))
	}
}

// realSurfaceCall emits the branch that forwards with the driver's own
// surface. A driver that never created one is not called at all.
func (e *emitter) realSurfaceCall(cmd *registry.Command, surface *surfaceRef, patch *rules.ObjectPatch, depth int) {
	e.line(depth, "if (NULL != icd_surface->real_icd_surfaces && (VkSurfaceKHR)NULL != icd_surface->real_icd_surfaces[icd_index]) {")
	if surface.info {
		info, _ := infoParam(cmd)
		e.line(depth+1, fmt.Sprintf("%s info_copy = *%s;", rules.TypeSurfaceInfo, info))
		e.line(depth+1, "info_copy.surface = icd_surface->real_icd_surfaces[icd_index];")
	}
	e.write(termCall(cmd, strings.Repeat("    ", depth+1)+returnPrefix(cmd), "", true, patch))
	if !cmd.HasReturn() {
		e.line(depth+1, "return;")
	}
	e.line(depth, "}")
}

func infoParam(cmd *registry.Command) (string, bool) {
	name := ""
	for _, p := range cmd.Params {
		if p.Type == rules.TypeSurfaceInfo {
			name = p.Name
		}
	}
	return name, name != ""
}

func (e *emitter) icdAndDevice(cmd *registry.Command) {
	e.write("    uint32_t icd_index = 0;\n")
	e.write("    struct loader_device *dev;\n")
	e.printf("    struct loader_icd_term *icd_term = loader_get_icd_and_device(%s, &dev, &icd_index);\n", cmd.Params[0].Name)
	e.printf("    if (NULL != icd_term && NULL != icd_term->dispatch.%s) {\n", cmd.BaseName())
}

func (e *emitter) termDeviceSurface(cmd *registry.Command, surface *surfaceRef, patch *rules.ObjectPatch) {
	e.icdAndDevice(cmd)
	e.printf("        VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)(%s);\n", surface.expr)
	e.realSurfaceCall(cmd, surface, patch, 2)
	e.write("    }\n")
	if cmd.HasReturn() {
		e.printf("    return %s;\n", zeroValue(cmd.ReturnType))
	}
}

func (e *emitter) termDevice(cmd *registry.Command, patch *rules.ObjectPatch) {
	e.icdAndDevice(cmd)
	if patch != nil {
		e.termPatch(*patch)
	}
	e.write(termCall(cmd, "        "+returnPrefix(cmd), "", false, patch))
	if cmd.HasReturn() {
		e.write("    } else {\n")
		e.printf("        return %s;\n", zeroValue(cmd.ReturnType))
	}
	e.write("    }\n")
}

// termPatch swaps the wrapped object inside the info struct for the handle
// the driver created: the unwrapped physical device, or the driver's own
// surface.
func (e *emitter) termPatch(p rules.ObjectPatch) {
	e.printf("        %s %s;\n", p.InfoType, p.Local)
	e.printf("        memcpy(&%s, %s, sizeof(%s));\n", p.Local, p.Param, p.InfoType)
	e.write("        // If this is a physical device, we have to replace it with the proper one for the next call.\n")
	e.printf("        if (%s->objectType == %s) {\n", p.Param, p.PhysicalDeviceType)
	e.printf("            struct loader_physical_device_term *phys_dev_term = (struct loader_physical_device_term *)(uintptr_t)%s->%s;\n", p.Param, p.ObjectField)
	e.printf("            %s.%s = (uint64_t)(uintptr_t)phys_dev_term->phys_dev;\n", p.Local, p.ObjectField)
	if p.SurfaceType != "" {
		e.write("        // If this is a KHR_surface, and the ICD has created its own, we have to replace it with the proper one for the next call.\n")
		e.printf("        } else if (%s->objectType == %s) {\n", p.Param, p.SurfaceType)
		e.write("            if (NULL != icd_term && NULL != icd_term->dispatch.CreateSwapchainKHR) {\n")
		e.printf("                VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)%s->%s;\n", p.Param, p.ObjectField)
		e.write("                if (NULL != icd_surface->real_icd_surfaces) {\n")
		e.printf("                    %s.%s = (uint64_t)icd_surface->real_icd_surfaces[icd_index];\n", p.Local, p.ObjectField)
		e.write("                }\n")
		e.write("            }\n")
	}
	e.write("        }\n")
}

func (e *emitter) additionalTerminatorPrototypes() {
	e.write("struct loader_device;\n")
	e.write("struct loader_icd_term;\n")
	e.write("\n\n")
	e.write("// Dispatch table properly filled in with appropriate terminators for the\n")
	e.write("// supported extensions.\n")
	e.write("extern const VkLayerInstanceDispatchTable instance_term_disp;\n")
	e.write("\n\n")
	e.write("VKAPI_ATTR bool VKAPI_CALL loader_icd_init_entries(struct loader_icd_term *icd_term, VkInstance inst,\n")
	e.write("                                                   const PFN_vkGetInstanceProcAddr fp_gipa);\n")
	e.write("\n")
	e.write("// Extension interception for vkGetDeviceProcAddr function, so we can return\n")
	e.write("// an appropriate terminator if this is one of those few device commands requiring\n")
	e.write("// a terminator.\n")
	e.write("PFN_vkVoidFunction get_extension_device_proc_terminator(struct loader_device *dev, const char *pName);\n")
	e.write("\n")

	e.write("// Manually implemented terminators\n")
	e.write("// --------------------------------\n")
	for _, name := range e.rules.ManualTerminators.Values() {
		if e.rules.PreInstanceCommands.Has(name) {
			continue
		}
		cmd, ok := e.reg.Command(name)
		if !ok {
			continue
		}
		e.write(flattenDecl(terminatorDecl(cmd.CDecl)))
		e.write("\n")
	}
}

// terminatorPrototypes declares the generated terminators that hand written
// loader code calls directly.
func (e *emitter) terminatorPrototypes() {
	for _, name := range e.rules.TerminatorPrototypeExtensions.Values() {
		g, ok := e.d.ExtGroup(name)
		if !ok {
			continue
		}
		e.ifdef(g.Protect)
		e.write(extHeader(g, false, false, "terminators"))
		for _, rec := range g.Commands {
			if !rec.NeedsTerminator || rec.HasAlias() {
				continue
			}
			e.write(terminatorDecl(rec.Command.CDecl))
			e.write("\n")
		}
		e.endif(g.Protect)
	}
	e.write("\n")
}

func termDispatchEntry(cmd *registry.Command) string {
	return fmt.Sprintf("    PFN_%s %s;\n", cmd.Name, cmd.BaseName())
}

func (e *emitter) terminatorDispatchStruct() {
	e.write("// ICD function pointer dispatch table\n")
	e.write("struct loader_icd_term_dispatch {\n")

	for _, g := range e.d.CoreGroups {
		printed := false
		header := func() {
			if !printed {
				e.write(coreHeader(g, true, true, ""))
				printed = true
			}
		}
		for _, rec := range g.InstanceCommands {
			if e.rules.TerminatorTableSkip.Has(rec.Name()) {
				continue
			}
			header()
			e.write(termDispatchEntry(rec.Command))
		}
		for _, rec := range g.DeviceCommands {
			if rec.NeedsTerminatorDispatch || rec.Name() == "vkGetDeviceProcAddr" {
				header()
				e.write(termDispatchEntry(rec.Command))
			}
		}
	}

	for _, g := range e.d.ExtGroups {
		if !g.RequiresTerminatorDispatch {
			continue
		}
		printed := false
		for _, rec := range g.Commands {
			if !rec.NeedsTerminatorDispatch && !e.isInstanceType(rec.Command.HandleType, g.Name) {
				continue
			}
			if !printed {
				e.write(extHeader(g, true, true, ""))
				e.ifdef(g.Protect)
				printed = true
			}
			e.write(termDispatchEntry(rec.Command))
		}
		if printed {
			e.endif(g.Protect)
		}
	}
	e.write("};\n\n")
}

const lookupGIPAMacro = `#define LOOKUP_GIPA(func, required)                                                        \
    do {                                                                                   \
        icd_term->dispatch.func = (PFN_vk##func)fp_gipa(inst, "vk" #func);                 \
        if (!icd_term->dispatch.func && required) {                                        \
            loader_log((struct loader_instance *)inst, VULKAN_LOADER_WARN_BIT, 0, \
                       loader_platform_get_proc_address_error("vk" #func));                \
            return false;                                                                  \
        }                                                                                  \
    } while (0)
`

// terminatorFunctions emits the driver entry-point loader and the device
// proc terminator lookup.
func (e *emitter) terminatorFunctions() {
	e.driverInitEntries()
	e.deviceProcTerminator()
}

func (e *emitter) driverEntry(cmd *registry.Command, required bool) {
	if e.rules.DriverLookupSkip.Has(cmd.Name) {
		return
	}
	e.printf("    LOOKUP_GIPA(%s, %t);\n", cmd.BaseName(), required)
}

func (e *emitter) driverInitEntries() {
	e.write("\n")
	e.write("VKAPI_ATTR bool VKAPI_CALL loader_icd_init_entries(struct loader_icd_term *icd_term, VkInstance inst,\n")
	e.write("                                                   const PFN_vkGetInstanceProcAddr fp_gipa) {\n")
	e.write("\n")
	e.write(lookupGIPAMacro)

	for _, g := range e.d.CoreGroups {
		printed := false
		for _, rec := range g.InstanceCommands {
			if !printed {
				e.write(coreComment(g))
				printed = true
			}
			e.driverEntry(rec.Command, g.Required())
		}
		for _, rec := range g.DeviceCommands {
			if !e.isInstanceType(rec.Command.HandleType, "") && !e.rules.DeviceCommandsNeedingTerminator.Has(rec.Name()) {
				continue
			}
			if !printed {
				e.write(coreComment(g))
				printed = true
			}
			e.driverEntry(rec.Command, g.Required())
		}
	}

	for _, g := range e.d.ExtGroups {
		if e.rules.IsExcludedName(g.Name) {
			continue
		}
		printed := false
		for _, rec := range g.Commands {
			if !e.isInstanceType(rec.Command.HandleType, g.Name) && !e.rules.DeviceCommandsNeedingTerminator.Has(rec.Name()) {
				continue
			}
			if !printed {
				e.write(extComment(g))
				e.ifdef(g.Protect)
				printed = true
			}
			e.driverEntry(rec.Command, false)
		}
		if printed {
			e.endif(g.Protect)
		}
	}

	e.write("\n")
	e.write("#undef LOOKUP_GIPA\n")
	e.write("\n")
	e.write("    return true;\n")
	e.write("};\n\n")
}

func (e *emitter) deviceProcTerminator() {
	e.write("// Some device commands still need a terminator because the loader needs to unwrap something about them.\n")
	e.write("// In many cases, the item needing unwrapping is a VkPhysicalDevice or VkSurfaceKHR object.  But there may be other items\n")
	e.write("// in the future.\n")
	e.write("PFN_vkVoidFunction get_extension_device_proc_terminator(struct loader_device *dev, const char *pName) {\n")
	e.write("    PFN_vkVoidFunction addr = NULL;\n")

	for _, g := range e.d.ExtGroups {
		if e.rules.IsExcludedName(g.Name) || !g.NeedsDeviceExtOverride {
			continue
		}
		e.write(extComment(g))
		e.ifdef(g.Protect)
		e.printf("    if (dev->dev_ext_enables.%s", g.VarName())
		// Required extensions only narrow the check when the loader tracks them.
		for _, req := range g.Requires {
			if e.d.IsTrackedDeviceExtension(req) {
				e.printf(" && dev->dev_ext_enables.%s", registry.ExtensionVarName(req))
			}
		}
		e.write(") {\n")

		first := true
		for _, rec := range g.Commands {
			if !e.rules.DeviceCommandsNeedingTerminator.Has(rec.Name()) {
				continue
			}
			if first {
				e.write("        if")
				first = false
			} else {
				e.write(" else if")
			}
			e.printf("(!strcmp(pName, \"%s\")) {\n", rec.Name())
			e.printf("            addr = (PFN_vkVoidFunction)terminator_%s;\n", rec.Command.BaseName())
			e.write("        }")
		}
		e.printf("\n    } // %s \n", g.Name)
		e.endif(g.Protect)
	}

	e.write("\n    return addr;\n")
	e.write("}\n\n")
}
