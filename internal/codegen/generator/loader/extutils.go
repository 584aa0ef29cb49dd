package loader

import (
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
)

// extensionDefine is the name-string macro of g.
func extensionDefine(g *meta.ExtGroup) string {
	if g.Define != "" {
		return g.Define
	}
	return strings.ToUpper(g.Name) + "_EXTENSION_NAME"
}

func (e *emitter) extensionPrototypes() {
	e.write(`
// Define types as externally available structs where necessary
struct loader_instance;
struct loader_scanned_icd;
struct loader_extension_list;
struct loader_dev_dispatch_table;
struct loader_physical_device_term;


// Check to determine support of instance extensions by a driver.
void instance_extensions_supported_by_driver(struct loader_scanned_icd* scanned_icd, struct loader_extension_list *ext_list);

// Check to determine support of device extensions by a physical device.
VkResult device_extensions_supported_by_physical_device(struct loader_physical_device_term* phys_dev_term);

// Extension interception for vkCreateInstance function, so we can properly detect and
// enable any instance extension information for extensions we know about.
void extensions_create_instance(struct loader_instance *ptr_instance, const VkInstanceCreateInfo *pCreateInfo);

// Extension interception for vkCreateDevice function, so we can properly detect and
// enable any device extension information for extensions we know about.
void extensions_create_device(struct loader_device *dev, const struct loader_physical_device_term *phys_dev_term,
                              const VkDeviceCreateInfo *pCreateInfo);

// Array of extension strings for instance extensions we support.
extern const char *const LOADER_INSTANCE_EXTENSIONS[];

// Init Device function pointer dispatch table with core commands
VKAPI_ATTR void VKAPI_CALL loader_init_device_dispatch_table(struct loader_dev_dispatch_table *dev_table, PFN_vkGetDeviceProcAddr gdpa,
                                                             VkDevice dev);

// Init Device function pointer dispatch table with extension commands
VKAPI_ATTR void VKAPI_CALL loader_init_device_extension_dispatch_table(struct loader_dev_dispatch_table *dev_table,
                                                                       PFN_vkGetInstanceProcAddr gipa,
                                                                       PFN_vkGetDeviceProcAddr gdpa,
                                                                       VkInstance inst,
                                                                       VkDevice dev);

// Init Instance function pointer dispatch table with core commands
VKAPI_ATTR void VKAPI_CALL loader_init_instance_core_dispatch_table(VkLayerInstanceDispatchTable *table, PFN_vkGetInstanceProcAddr gipa,
                                                                    VkInstance inst);

// Init Instance function pointer dispatch table with extension commands
VKAPI_ATTR void VKAPI_CALL loader_init_instance_extension_dispatch_table(VkLayerInstanceDispatchTable *table, PFN_vkGetInstanceProcAddr gipa,
                                                                         VkInstance inst);

// Instance command lookup function
VKAPI_ATTR void* VKAPI_CALL loader_lookup_instance_dispatch_table(const VkLayerInstanceDispatchTable *table, const char *name,
                                                                  bool *found_name);

// Device command lookup function
VKAPI_ATTR void* VKAPI_CALL loader_lookup_device_dispatch_table(const VkLayerDispatchTable *table, const char *name);

`)
}

func (e *emitter) enableBits(groups []*meta.ExtGroup) {
	for _, g := range groups {
		e.printf("    int %s : 2;\n", g.VarName())
	}
}

func (e *emitter) extensionEnableStructs() {
	e.write("// Struct of all known instance extensions that the loader may need to refer to when\n")
	e.write("// making function pointer decisions.\n")
	e.write("struct loader_instance_extension_enables {\n")
	e.enableBits(e.d.InstanceExtensions)
	e.write("};\n\n")

	e.write("// Struct of all device extensions that the loader has to override at least one command for\n")
	e.write("struct loader_device_extension_enables {\n")
	e.enableBits(e.d.TrackedDeviceExtensions)
	e.write("};\n\n")

	e.write("struct loader_driver_device_extension_enables {\n")
	e.enableBits(e.d.DriverDeviceExtensions)
	e.write("};\n\n")
}

// supportChain emits an if/else-if ladder setting one support bit per
// extension whose name matches nameExpr.
func (e *emitter) supportChain(groups []*meta.ExtGroup, nameExpr, target string) {
	for i, g := range groups {
		e.write(extComment(g))
		e.ifdef(g.Protect)
		e.write("        ")
		if i > 0 {
			e.write("} else ")
		}
		e.printf("if (strncmp(%s, \"%s\", VK_MAX_EXTENSION_NAME_SIZE) == 0) {\n", nameExpr, g.Name)
		e.printf("            %s.%s = 1;\n", target, g.VarName())
		e.endif(g.Protect)
	}
	e.write("        }\n")
	e.write("    }\n")
}

func (e *emitter) driverExtensionChecks() {
	e.write("// Check to determine support of instance extensions by a driver.\n")
	e.write("void instance_extensions_supported_by_driver(struct loader_scanned_icd *scanned_icd, struct loader_extension_list *ext_list) {\n")
	e.write("    // Fill in the supported extension structure\n")
	e.write("    for (uint32_t i = 0; i < ext_list->count; i++) {\n")
	e.supportChain(e.d.InstanceExtensions, "ext_list->list[i].extensionName", "scanned_icd->inst_ext_support")
	e.write("}\n")
	e.write("\n")

	e.write(`// Check to determine support of device extensions by a physical device.
VkResult device_extensions_supported_by_physical_device(struct loader_physical_device_term* phys_dev_term) {
    struct loader_icd_term *icd_term = phys_dev_term->this_icd_term;
    VkExtensionProperties *ext_props = NULL;
    uint32_t ext_count = 0;
    const struct loader_instance* driver_instance = icd_term->this_instance;
    VkPhysicalDevice driver_phys_dev = phys_dev_term->phys_dev;

    // Get the extension count
    VkResult result = icd_term->dispatch.EnumerateDeviceExtensionProperties(driver_phys_dev, NULL, &ext_count, NULL);
    if (result != VK_SUCCESS) {
        loader_log(driver_instance, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_DRIVER_BIT, 0,
                   "device_extensions_supported_by_physical_device: calling driver \"%s\" "
                   "EnumerateDeviceExtensionProperties to query count failed!\n",
                   icd_term->scanned_icd->lib_name);
        goto out;
    }

    // Allocate space for us to store the extension information
    ext_props = loader_instance_heap_alloc(driver_instance, sizeof(VkExtensionProperties) * ext_count,
                                            VK_SYSTEM_ALLOCATION_SCOPE_COMMAND);
    if (!ext_props) {
        loader_log(driver_instance, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_DRIVER_BIT, 0,
                   "device_extensions_supported_by_physical_device: failed allocating extension properties struct!\n",
                   icd_term->scanned_icd->lib_name);
        result = VK_ERROR_OUT_OF_HOST_MEMORY;
        goto out;
    }

    // Query the actual extension information
    result = icd_term->dispatch.EnumerateDeviceExtensionProperties(driver_phys_dev, NULL, &ext_count, ext_props);
    if (result != VK_SUCCESS) {
        loader_log(driver_instance, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_DRIVER_BIT, 0,
                   "device_extensions_supported_by_physical_device: calling driver \"%s\" "
                   "EnumerateDeviceExtensionProperties to query extensions failed!\n",
                   icd_term->scanned_icd->lib_name);
        goto out;
    }

    // Fill in the supported extension structure
    for (uint32_t i = 0; i < ext_count; i++) {
`)
	e.supportChain(e.d.DriverDeviceExtensions, "ext_props[i].extensionName", "phys_dev_term->dev_ext_support")
	e.write(`
out:

    if (NULL != ext_props) {
        loader_instance_heap_free(driver_instance, ext_props);
    }
    return result;
}

`)
}

func (e *emitter) extensionEnableChecks() {
	e.write("// A function that can be used to query enabled extensions during a vkCreateInstance call\n")
	e.write("void extensions_create_instance(struct loader_instance *ptr_instance, const VkInstanceCreateInfo *pCreateInfo) {\n")
	e.write("    for (uint32_t i = 0; i < pCreateInfo->enabledExtensionCount; i++) {\n")
	for i, g := range e.d.InstanceExtensions {
		e.write(extComment(g))
		e.ifdef(g.Protect)
		if i > 0 {
			e.write("        } else if (0 == strcmp(pCreateInfo->ppEnabledExtensionNames[i], ")
		} else {
			e.write("        if (0 == strcmp(pCreateInfo->ppEnabledExtensionNames[i], ")
		}
		e.printf("%s)) {\n", extensionDefine(g))
		e.printf("            ptr_instance->inst_ext_enables.%s = 1;\n", g.VarName())
		e.endif(g.Protect)
	}
	e.write("        }\n")
	e.write("    }\n")
	e.write("}\n\n")

	e.write("// A function that can be used to query enabled extensions during a vkCreateDevice call\n")
	e.write("void extensions_create_device(struct loader_device *dev, const struct loader_physical_device_term *phys_dev_term,\n")
	e.write("                              const VkDeviceCreateInfo *pCreateInfo) {\n")
	e.write("    for (uint32_t i = 0; i < pCreateInfo->enabledExtensionCount; i++) {\n")
	first := true
	for _, g := range e.d.ExtGroups {
		if !g.NeedsDeviceExtOverride {
			continue
		}
		if g.Protect != "" {
			e.printf("\n#ifdef %s\n       ", g.Protect)
		}
		if first {
			e.write("        if (")
			first = false
		} else {
			e.write(" else if (")
		}
		e.printf("!strcmp(pCreateInfo->ppEnabledExtensionNames[i], %s)) {\n", extensionDefine(g))
		e.printf("            dev->dev_ext_enables.%s = 1;\n", g.VarName())
		e.write("        }")
		if g.Protect != "" {
			e.printf("\n#endif // %s\n", g.Protect)
		}
	}
	e.write("\n")
	e.write("    }\n")

	for _, name := range e.rules.InstanceInheritedDeviceExtensions.Values() {
		if !e.d.IsTrackedDeviceExtension(name) {
			continue
		}
		v := registry.ExtensionVarName(name)
		e.printf("    dev->dev_ext_enables.%s = phys_dev_term->this_icd_term->this_instance->inst_ext_enables.%s;\n\n", v, v)
	}
	for _, p := range e.rules.VersionPromotedDeviceExtensions {
		if !e.d.IsTrackedDeviceExtension(p.Extension) {
			continue
		}
		v := registry.ExtensionVarName(p.Extension)
		e.printf("    if (!dev->dev_ext_enables.%s && phys_dev_term->properties.apiVersion >= %s) {\n", v, p.APIVersion)
		e.printf("        dev->dev_ext_enables.%s = 1;\n", v)
		e.write("    }\n\n")
	}

	e.write("    loader_log(phys_dev_term->this_icd_term->this_instance, VULKAN_LOADER_LAYER_BIT | VULKAN_LOADER_DRIVER_BIT, 0,\n")
	e.write("               \"       Using \\\"%s\\\" using driver \\\"%s\\\"\\n\",\n")
	e.write("               phys_dev_term->properties.deviceName, phys_dev_term->this_icd_term->scanned_icd->lib_name);\n")
	e.write("}\n\n")
}

const whitelistIndent = "                                                  "

func (e *emitter) instanceExtensionWhitelist() {
	e.write("// A null-terminated list of all of the instance extensions supported by the loader.\n")
	e.write("// If an instance extension name is not in this list, but it is exported by one or more of the\n")
	e.write("// ICDs detected by the loader, then the extension name not in the list will be filtered out\n")
	e.write("// before passing the list of extensions to the application.\n")
	e.write("const char *const LOADER_INSTANCE_EXTENSIONS[] = {\n")
	for _, g := range e.d.InstanceExtensions {
		e.ifdef(g.Protect)
		e.write(whitelistIndent + extensionDefine(g) + ",\n")
		e.endif(g.Protect)
	}
	e.write(whitelistIndent + "NULL };\n")
}
