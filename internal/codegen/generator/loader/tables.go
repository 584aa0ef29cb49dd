package loader

import (
	"fmt"
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/meta"
)

// instanceDispatchTable emits either the VkLayerInstanceDispatchTable type
// or the terminator-filled instance_term_disp initializer. Both walk the
// same slots in the same order.
func (e *emitter) instanceDispatchTable(definition bool) {
	e.write("\n")
	if definition {
		e.write("typedef PFN_vkVoidFunction (VKAPI_PTR *PFN_GetPhysicalDeviceProcAddr)(VkInstance instance, const char* pName);\n")
		e.write("\n")
		e.write("// Instance function pointer dispatch table\n")
		e.write("typedef struct VkLayerInstanceDispatchTable_ {\n")
		// never listed in the registry
		e.write("    // Manually add in GetPhysicalDeviceProcAddr entry\n")
		e.write("    PFN_GetPhysicalDeviceProcAddr GetPhysicalDeviceProcAddr;\n")
	} else {
		e.write("// This table contains the loader's instance dispatch table, which contains\n")
		e.write("// default functions if no instance layers are activated.  This contains\n")
		e.write("// pointers to \"terminator functions\".\n")
		e.write("const VkLayerInstanceDispatchTable instance_term_disp = {\n")
	}

	for _, g := range e.d.CoreGroups {
		if len(g.InstanceCommands) == 0 {
			continue
		}
		e.write(coreComment(g))
		for _, rec := range g.InstanceCommands {
			e.instanceTableEntry(rec, true, definition)
		}
	}

	for _, g := range e.d.ExtGroups {
		if !g.HasInstanceCommands {
			continue
		}
		printed := false
		for _, rec := range g.Commands {
			if !e.isInstanceType(rec.Command.HandleType, g.Name) {
				continue
			}
			if !printed {
				e.write(extComment(g))
				e.ifdef(g.Protect)
				printed = true
			}
			e.instanceTableEntry(rec, false, definition)
		}
		if printed {
			e.endif(g.Protect)
		}
	}

	if definition {
		e.write("} VkLayerInstanceDispatchTable;\n\n")
	} else {
		e.write("};\n\n")
	}
}

func (e *emitter) instanceTableEntry(rec meta.Record, core, definition bool) {
	cmd := rec.Command
	base := cmd.BaseName()
	switch {
	case definition:
		e.printf("    PFN_%s %s;\n", cmd.Name, base)
	case e.rules.PreInstanceCommands.Has(cmd.Name):
	case base == "GetInstanceProcAddr":
		e.printf("    .%s = %s,\n", base, cmd.Name)
	default:
		target := base
		// an extension alias shares the terminator of the command it aliases
		if !core && cmd.Alias != "" {
			target = common.StripAPIPrefix(cmd.Alias)
		}
		e.printf("    .%s = terminator_%s,\n", base, target)
	}
}

func (e *emitter) deviceDispatchTable() {
	e.write("// Device function pointer dispatch table\n")
	e.write("#define DEVICE_DISP_TABLE_MAGIC_NUMBER 0x10ADED040410ADEDUL\n")
	e.write("typedef struct VkLayerDispatchTable_ {\n")
	e.write("    uint64_t magic; // Should be DEVICE_DISP_TABLE_MAGIC_NUMBER\n")

	for _, g := range e.d.CoreGroups {
		e.write(coreComment(g))
		for _, rec := range g.DeviceCommands {
			e.printf("    PFN_%s %s;\n", rec.Name(), rec.Command.BaseName())
		}
	}

	for _, g := range e.d.ExtGroups {
		if len(g.Commands) == 0 || (g.IsInstance() && !e.rules.DeviceTableInstanceExtensions.Has(g.Name)) {
			continue
		}
		printed := false
		for _, rec := range g.Commands {
			if e.rules.InstanceRootHandles.Has(rec.Command.HandleType) {
				continue
			}
			if !printed {
				e.write(extComment(g))
				e.ifdef(g.Protect)
				printed = true
			}
			e.printf("    PFN_%s %s;\n", rec.Name(), rec.Command.BaseName())
		}
		if printed {
			e.endif(g.Protect)
		}
	}
	e.write("} VkLayerDispatchTable;\n\n")
}

// tableInit is one of the generated dispatch-table fill or lookup functions.
type tableInit struct {
	strings.Builder
	owner, proc string
	lookup      bool
}

func (t *tableInit) entry(e *emitter, name string) {
	if e.rules.AlwaysHandWritten.Has(name) {
		return
	}
	base := common.StripAPIPrefix(name)
	switch {
	case t.lookup:
		t.WriteString(fmt.Sprintf("    if (!strcmp(name, \"%s\")) return (void *)table->%s;\n", base, base))
	case base == "GetDeviceProcAddr":
		t.WriteString("    table->GetDeviceProcAddr = gdpa;\n")
	case base == "GetInstanceProcAddr":
		t.WriteString("    table->GetInstanceProcAddr = gipa;\n")
	default:
		t.WriteString(fmt.Sprintf("    table->%s = (PFN_%s)%s(%s, \"%s\");\n", base, name, t.proc, t.owner, name))
	}
}

// dispatchTableInit emits the functions that fill the instance and device
// dispatch tables at runtime and the name based lookups into them.
func (e *emitter) dispatchTableInit() {
	e.write("// Device extension error function\n")
	e.write("VKAPI_ATTR VkResult VKAPI_CALL vkDevExtError(VkDevice dev) {\n")
	e.write("    struct loader_device *found_dev;\n")
	e.write("    // The device going in is a trampoline device\n")
	e.write("    struct loader_icd_term *icd_term = loader_get_icd_and_device(dev, &found_dev, NULL);\n")
	e.write("\n")
	e.write("    if (icd_term)\n")
	e.write("        loader_log(icd_term->this_instance, VULKAN_LOADER_ERROR_BIT, 0,\n")
	e.write("                   \"Bad destination in loader trampoline dispatch,\"\n")
	e.write("                   \"Are layers and extensions that you are calling enabled?\");\n")
	e.write("    return VK_ERROR_EXTENSION_NOT_PRESENT;\n")
	e.write("}\n\n")

	instCore := &tableInit{owner: "inst", proc: "gipa"}
	instCore.WriteString("// Init Instance function pointer dispatch table with core commands\n")
	instCore.WriteString("VKAPI_ATTR void VKAPI_CALL loader_init_instance_core_dispatch_table(VkLayerInstanceDispatchTable *table, PFN_vkGetInstanceProcAddr gipa,\n")
	instCore.WriteString("                                                                    VkInstance inst) {\n")

	instExt := &tableInit{owner: "inst", proc: "gipa"}
	instExt.WriteString("// Init Instance function pointer dispatch table with extension commands\n")
	instExt.WriteString("VKAPI_ATTR void VKAPI_CALL loader_init_instance_extension_dispatch_table(VkLayerInstanceDispatchTable *table, PFN_vkGetInstanceProcAddr gipa,\n")
	instExt.WriteString("                                                                        VkInstance inst) {\n")

	devCore := &tableInit{owner: "dev", proc: "gdpa"}
	devCore.WriteString("// Init Device function pointer dispatch table with core commands\n")
	devCore.WriteString("VKAPI_ATTR void VKAPI_CALL loader_init_device_dispatch_table(struct loader_dev_dispatch_table *dev_table, PFN_vkGetDeviceProcAddr gdpa,\n")
	devCore.WriteString("                                                             VkDevice dev) {\n")
	devCore.WriteString("    VkLayerDispatchTable *table = &dev_table->core_dispatch;\n")
	devCore.WriteString("    table->magic = DEVICE_DISP_TABLE_MAGIC_NUMBER;\n")
	devCore.WriteString("    for (uint32_t i = 0; i < MAX_NUM_UNKNOWN_EXTS; i++) dev_table->ext_dispatch[i] = (PFN_vkDevExt)vkDevExtError;\n")

	devExt := &tableInit{owner: "dev", proc: "gdpa"}
	devExt.WriteString("// Init Device function pointer dispatch table with extension commands\n")
	devExt.WriteString("VKAPI_ATTR void VKAPI_CALL loader_init_device_extension_dispatch_table(struct loader_dev_dispatch_table *dev_table,\n")
	devExt.WriteString("                                                                       PFN_vkGetInstanceProcAddr gipa,\n")
	devExt.WriteString("                                                                       PFN_vkGetDeviceProcAddr gdpa,\n")
	devExt.WriteString("                                                                       VkInstance inst,\n")
	devExt.WriteString("                                                                       VkDevice dev) {\n")
	devExt.WriteString("    VkLayerDispatchTable *table = &dev_table->core_dispatch;\n")
	devExt.WriteString("    table->magic = DEVICE_DISP_TABLE_MAGIC_NUMBER;\n")
	// device commands of an instance extension are resolved through the instance
	devExtViaInst := &tableInit{owner: "inst", proc: "gipa"}

	lookupInst := &tableInit{lookup: true}
	lookupInst.WriteString("// Instance command lookup function\n")
	lookupInst.WriteString("VKAPI_ATTR void* VKAPI_CALL loader_lookup_instance_dispatch_table(const VkLayerInstanceDispatchTable *table, const char *name,\n")
	lookupInst.WriteString("                                                                  bool *found_name) {\n")
	lookupInst.WriteString("    if (!name || name[0] != 'v' || name[1] != 'k') {\n")
	lookupInst.WriteString("        *found_name = false;\n")
	lookupInst.WriteString("        return NULL;\n")
	lookupInst.WriteString("    }\n")
	lookupInst.WriteString("\n")
	lookupInst.WriteString("    *found_name = true;\n")
	lookupInst.WriteString("    name += 2;\n")

	lookupDev := &tableInit{lookup: true}
	lookupDev.WriteString("// Device command lookup function\n")
	lookupDev.WriteString("VKAPI_ATTR void* VKAPI_CALL loader_lookup_device_dispatch_table(const VkLayerDispatchTable *table, const char *name) {\n")
	lookupDev.WriteString("    if (!name || name[0] != 'v' || name[1] != 'k') return NULL;\n")
	lookupDev.WriteString("\n")
	lookupDev.WriteString("    name += 2;\n")

	for _, g := range e.d.CoreGroups {
		if len(g.InstanceCommands) > 0 {
			instCore.WriteString(coreComment(g))
			lookupInst.WriteString(coreComment(g))
		}
		for _, rec := range g.InstanceCommands {
			instCore.entry(e, rec.Name())
			lookupInst.entry(e, rec.Name())
		}
		if len(g.DeviceCommands) > 0 {
			devCore.WriteString(coreComment(g))
			lookupDev.WriteString(coreComment(g))
		}
		for _, rec := range g.DeviceCommands {
			devCore.entry(e, rec.Name())
			lookupDev.entry(e, rec.Name())
		}
	}

	for _, g := range e.d.ExtGroups {
		instPrinted, devPrinted := false, false
		for _, rec := range g.Commands {
			if e.isInstanceType(rec.Command.HandleType, g.Name) {
				if !instPrinted {
					head := extComment(g) + ifdefLine(g.Protect)
					instExt.WriteString(head)
					lookupInst.WriteString(head)
					instPrinted = true
				}
				instExt.entry(e, rec.Name())
				lookupInst.entry(e, rec.Name())
				continue
			}

			if !devPrinted {
				head := extComment(g) + ifdefLine(g.Protect)
				devExt.WriteString(head)
				lookupDev.WriteString(head)
				devPrinted = true
			}
			if g.IsInstance() {
				devExtViaInst.Reset()
				devExtViaInst.entry(e, rec.Name())
				devExt.WriteString(devExtViaInst.String())
			} else {
				devExt.entry(e, rec.Name())
			}
			lookupDev.entry(e, rec.Name())
		}
		if instPrinted {
			instExt.WriteString(endifLine(g.Protect))
			lookupInst.WriteString(endifLine(g.Protect))
		}
		if devPrinted {
			devExt.WriteString(endifLine(g.Protect))
			lookupDev.WriteString(endifLine(g.Protect))
		}
	}

	for _, t := range []*tableInit{instCore, instExt, devCore, devExt} {
		t.WriteString("}\n\n")
	}
	lookupInst.WriteString("\n")
	lookupInst.WriteString("    *found_name = false;\n")
	lookupInst.WriteString("    return NULL;\n")
	lookupInst.WriteString("}\n\n")

	lookupDev.WriteString("\n")
	lookupDev.WriteString("    return NULL;\n")
	lookupDev.WriteString("}\n\n")

	for _, t := range []*tableInit{instCore, instExt, devCore, devExt, lookupInst, lookupDev} {
		e.write(t.String())
	}
}

func ifdefLine(protect string) string {
	if protect == "" {
		return ""
	}
	return "#ifdef " + protect + "\n"
}

func endifLine(protect string) string {
	if protect == "" {
		return ""
	}
	return "#endif // " + protect + "\n"
}
