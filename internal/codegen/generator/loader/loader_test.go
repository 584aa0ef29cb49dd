package loader_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alia5/loadergen/internal/codegen/classify"
	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/generator/loader"
	"github.com/Alia5/loadergen/internal/codegen/group"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
	fixture "github.com/Alia5/loadergen/internal/testing"
)

func render(t *testing.T, d *meta.Dispatch, name string) string {
	t.Helper()
	out, err := loader.Render(d, name)
	require.NoError(t, err)
	return string(out)
}

// body strips the declaration from a synthesized function.
func body(t *testing.T, fn string) string {
	t.Helper()
	_, after, ok := strings.Cut(fn, ") {\n")
	require.True(t, ok, "no function body in %q", fn)
	return after
}

func extGroup(t *testing.T, d *meta.Dispatch, name string) *meta.ExtGroup {
	t.Helper()
	g, ok := d.ExtGroup(name)
	require.True(t, ok, name)
	return g
}

func TestRenderUnknownTarget(t *testing.T) {
	_, err := loader.Render(fixture.BuildDispatch(t), "vk_nope.c")
	assert.ErrorIs(t, err, loader.ErrUnknownTarget)
	assert.False(t, loader.IsTarget("vk_nope.c"))
}

func TestRenderFileSkeleton(t *testing.T) {
	d := fixture.BuildDispatch(t)

	header := render(t, d, loader.TrampolinesHeader)
	assert.True(t, strings.HasPrefix(header, common.Banner()+"\n// clang-format off\n#pragma once\n\n// Extension interception"), header)
	assert.True(t, strings.HasSuffix(header, "// clang-format on\n"))
	assert.True(t, common.IsGenerated([]byte(header)))

	source := render(t, d, loader.TrampolinesSource)
	assert.NotContains(t, source, "#pragma once")
	assert.Contains(t, source, "// clang-format off\n#include <stdlib.h>\n#include <string.h>\n\n#include \"allocation.h\"\n")
	assert.Contains(t, source, "#include \"wsi.h\"\n#include <vulkan/vk_icd.h>\n\n")
}

func TestRenderIsIdempotent(t *testing.T) {
	for _, name := range loader.Targets() {
		t.Run(name, func(t *testing.T) {
			a := render(t, fixture.BuildDispatch(t), name)
			b := render(t, fixture.BuildDispatch(t), name)
			assert.Equal(t, a, b)
		})
	}
}

func TestPreprocessorGuardsAreBalanced(t *testing.T) {
	d := fixture.BuildDispatch(t)
	for _, name := range loader.Targets() {
		t.Run(name, func(t *testing.T) {
			open := ""
			for i, line := range strings.Split(render(t, d, name), "\n") {
				switch {
				case strings.HasPrefix(line, "#ifdef "):
					require.Empty(t, open, "line %d: nested guard", i+1)
					open = strings.TrimPrefix(line, "#ifdef ")
				case strings.HasPrefix(line, "#endif"):
					require.Equal(t, "#endif // "+open, line, "line %d", i+1)
					open = ""
				}
			}
			assert.Empty(t, open)
		})
	}
}

func TestProtectedExtensionIsBracketed(t *testing.T) {
	d := fixture.BuildDispatch(t)

	tramps := render(t, d, loader.TrampolinesSource)
	start := strings.Index(tramps, "#ifdef VK_USE_PLATFORM_XLIB_XRANDR_EXT\n")
	end := strings.Index(tramps, "#endif // VK_USE_PLATFORM_XLIB_XRANDR_EXT\n")
	require.True(t, start >= 0 && end > start)
	fn := strings.Index(tramps, "VKAPI_CALL AcquireXlibDisplayEXT(")
	assert.True(t, fn > start && fn < end, "trampoline outside its guard")

	utils := render(t, d, loader.ExtensionUtilsSource)
	assert.Contains(t, utils, "#ifdef VK_USE_PLATFORM_XLIB_XRANDR_EXT\n"+
		"                                                  VK_EXT_ACQUIRE_XLIB_DISPLAY_EXTENSION_NAME,\n"+
		"#endif // VK_USE_PLATFORM_XLIB_XRANDR_EXT\n")
}

func TestGlobalManualCommandIsAbsent(t *testing.T) {
	d := fixture.BuildDispatch(t)
	rec := fixture.FindRecord(t, d, "vkEnumerateInstanceVersion")
	require.False(t, rec.NeedsTrampoline)
	require.False(t, rec.NeedsTerminator)

	assert.NotContains(t, render(t, d, loader.TrampolinesSource), "vkEnumerateInstanceVersion(")
	assert.NotContains(t, render(t, d, loader.TerminatorsSource), "terminator_EnumerateInstanceVersion")
	assert.NotContains(t, render(t, d, loader.TerminatorsHeader), "terminator_EnumerateInstanceVersion")
}

func TestManualCommandsHaveNoTrampoline(t *testing.T) {
	d := fixture.BuildDispatch(t)
	tramps := render(t, d, loader.TrampolinesSource)

	for _, name := range []string{"vkCreateInstance", "vkDestroyInstance", "vkCreateDevice", "vkGetDeviceProcAddr"} {
		assert.NotContains(t, tramps, "VKAPI_CALL "+name+"(", name)
	}
	assert.Contains(t, tramps, "LOADER_EXPORT VKAPI_ATTR void VKAPI_CALL vkGetPhysicalDeviceFeatures(")
}

func TestTrampolineSetsDispatchOnHandleArray(t *testing.T) {
	d := fixture.BuildDispatch(t)
	rec := fixture.FindRecord(t, d, "vkAllocateCommandBuffers")

	fn := loader.SynthesizeTrampoline(d, rec, nil)
	assert.True(t, strings.HasPrefix(fn, "\nLOADER_EXPORT VKAPI_ATTR VkResult VKAPI_CALL vkAllocateCommandBuffers("))

	want := `    VkResult temp;
    const VkLayerDispatchTable *disp = loader_get_dispatch(device);
    temp = disp->AllocateCommandBuffers(device, pAllocateInfo, pCommandBuffers);
    if (VK_SUCCESS == temp) {
        for (uint32_t i = 0; i < pAllocateInfo->commandBufferCount; i++) {
            if (pCommandBuffers != NULL && pCommandBuffers[i] != NULL) {
                loader_set_dispatch(pCommandBuffers[i], disp);
            }
        }
    }
    return temp;
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("trampoline mismatch (-want +got):\n%s", diff)
	}
}

func TestTrampolineSetsDispatchOnSingleHandle(t *testing.T) {
	d := fixture.BuildDispatch(t)
	fn := loader.SynthesizeTrampoline(d, fixture.FindRecord(t, d, "vkGetDeviceQueue"), nil)

	want := `    const VkLayerDispatchTable *disp = loader_get_dispatch(device);
    disp->GetDeviceQueue(device, queueFamilyIndex, queueIndex, pQueue);
    if (pQueue != NULL && *pQueue != NULL) {
        loader_set_dispatch(*pQueue, disp);
    }
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("trampoline mismatch (-want +got):\n%s", diff)
	}
}

func TestTrampolineArrayCount(t *testing.T) {
	d := fixture.BuildDispatch(t)
	cmd := &registry.Command{
		Name:       "vkCreateDevicesTEST",
		ReturnType: "VkResult",
		CDecl:      "VKAPI_ATTR VkResult VKAPI_CALL vkCreateDevicesTEST(VkDevice device, uint32_t* pCount, VkDevice* pDevices);",
		HandleType: "VkDevice",
		Class:      registry.DispatchDevice,
		Params: []registry.Param{
			{Type: "VkDevice", Name: "device"},
			{Type: "uint32_t", Name: "pCount", Pointer: true},
			{Type: "VkDevice", Name: "pDevices", Pointer: true, Len: "pCount"},
		},
	}

	fn := loader.SynthesizeTrampoline(d, meta.Record{Command: cmd, NeedsTrampoline: true}, nil)
	assert.Contains(t, fn, "for (uint32_t i = 0; i < *pCount; i++) {")

	cmd.Params[2].Len = ""
	fn = loader.SynthesizeTrampoline(d, meta.Record{Command: cmd, NeedsTrampoline: true}, nil)
	assert.Contains(t, fn, "for (uint32_t i = 0; i < UNKNOWN_COUNT_ITEM_PLEASE_EDIT_SCRIPT; i++) {")
}

func TestTrampolineUnwrapsOnlyItsDispatchPhysicalDevice(t *testing.T) {
	d := fixture.BuildDispatch(t)
	cmd := &registry.Command{
		Name:       "vkBindPhysicalDeviceTEST",
		CDecl:      "VKAPI_ATTR void VKAPI_CALL vkBindPhysicalDeviceTEST(VkDevice device, VkPhysicalDevice physicalDevice);",
		HandleType: "VkDevice",
		Class:      registry.DispatchDevice,
		Params: []registry.Param{
			{Type: "VkDevice", Name: "device"},
			{Type: "VkPhysicalDevice", Name: "physicalDevice"},
		},
	}

	fn := loader.SynthesizeTrampoline(d, meta.Record{Command: cmd, NeedsTrampoline: true}, nil)
	assert.Contains(t, fn, "disp->BindPhysicalDeviceTEST(device, physicalDevice);\n")
	assert.NotContains(t, fn, "unwrapped_phys_dev")
}

func TestTrampolineFallsBackToAliasedExtension(t *testing.T) {
	d := fixture.BuildDispatch(t)
	fn := loader.SynthesizeTrampoline(d, fixture.FindRecord(t, d, "vkGetPhysicalDeviceFeatures2"), nil)

	assert.Contains(t, fn, `    disp = loader_get_instance_layer_dispatch(physicalDevice);
    const struct loader_instance *inst = ((struct loader_physical_device_tramp *)physicalDevice)->this_instance;
    if (inst != NULL && inst->inst_ext_enables.khr_get_physical_device_properties2) {
        disp->GetPhysicalDeviceFeatures2KHR(unwrapped_phys_dev, pFeatures);
    } else {
        disp->GetPhysicalDeviceFeatures2(unwrapped_phys_dev, pFeatures);
    }
}
`)
}

func TestTrampolinePatchesDebugMarkerObject(t *testing.T) {
	d := fixture.BuildDispatch(t)
	g := extGroup(t, d, "VK_EXT_debug_marker")
	fn := loader.SynthesizeTrampoline(d, fixture.FindRecord(t, d, "vkDebugMarkerSetObjectNameEXT"), g)

	assert.True(t, strings.HasPrefix(fn, "\nVKAPI_ATTR VkResult VKAPI_CALL DebugMarkerSetObjectNameEXT("))
	want := `    const VkLayerDispatchTable *disp = loader_get_dispatch(device);
    if (NULL == disp) {
        loader_log(NULL, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_VALIDATION_BIT, 0,
                   "vkDebugMarkerSetObjectNameEXT: Invalid VkDevice [VUID-vkDebugMarkerSetObjectNameEXT-device-parameter]");
        abort(); /* Intentionally fail so user can correct issue. */
    }
    VkDebugMarkerObjectNameInfoEXT local_name_info;
    memcpy(&local_name_info, pNameInfo, sizeof(VkDebugMarkerObjectNameInfoEXT));
    // If this is a physical device, we have to replace it with the proper one for the next call.
    if (pNameInfo->objectType == VK_DEBUG_REPORT_OBJECT_TYPE_PHYSICAL_DEVICE_EXT) {
        struct loader_physical_device_tramp *phys_dev_tramp = (struct loader_physical_device_tramp *)(uintptr_t)pNameInfo->object;
        local_name_info.object = (uint64_t)(uintptr_t)phys_dev_tramp->phys_dev;
    }
    return disp->DebugMarkerSetObjectNameEXT(device, &local_name_info);
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("trampoline mismatch (-want +got):\n%s", diff)
	}
}

func TestNullCheckedTrampolines(t *testing.T) {
	d := fixture.BuildDispatch(t)
	g := extGroup(t, d, "VK_EXT_debug_utils")

	name := loader.SynthesizeTrampoline(d, fixture.FindRecord(t, d, "vkSetDebugUtilsObjectNameEXT"), g)
	assert.Contains(t, name, `    if (disp->SetDebugUtilsObjectNameEXT != NULL) {
        return disp->SetDebugUtilsObjectNameEXT(device, &local_name_info);
    } else {
        return VK_SUCCESS;
    }
}
`)
	assert.Contains(t, name, "local_name_info.objectHandle = (uint64_t)(uintptr_t)phys_dev_tramp->phys_dev;")

	label := loader.SynthesizeTrampoline(d, fixture.FindRecord(t, d, "vkQueueBeginDebugUtilsLabelEXT"), g)
	assert.True(t, strings.HasSuffix(label, `    if (disp->QueueBeginDebugUtilsLabelEXT != NULL) {
        disp->QueueBeginDebugUtilsLabelEXT(queue, pLabelInfo);
    }
}
`), label)
}

func TestTerminatorResolvesDriverSurface(t *testing.T) {
	d := fixture.BuildDispatch(t)
	rec := fixture.FindRecord(t, d, "vkGetDeviceGroupSurfacePresentModesKHR")
	require.True(t, rec.NeedsTerminator)
	require.True(t, rec.NeedsTerminatorDispatch)

	fn := loader.SynthesizeTerminator(d, rec, registry.ExtensionDevice)
	assert.True(t, strings.HasPrefix(fn, "\nVKAPI_ATTR VkResult VKAPI_CALL terminator_GetDeviceGroupSurfacePresentModesKHR("))

	want := `    uint32_t icd_index = 0;
    struct loader_device *dev;
    struct loader_icd_term *icd_term = loader_get_icd_and_device(device, &dev, &icd_index);
    if (NULL != icd_term && NULL != icd_term->dispatch.GetDeviceGroupSurfacePresentModesKHR) {
        VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)(surface);
        if (NULL != icd_surface->real_icd_surfaces && (VkSurfaceKHR)NULL != icd_surface->real_icd_surfaces[icd_index]) {
            return icd_term->dispatch.GetDeviceGroupSurfacePresentModesKHR(device, icd_surface->real_icd_surfaces[icd_index], pModes);
        }
    }
    return VK_SUCCESS;
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("terminator mismatch (-want +got):\n%s", diff)
	}
}

func TestPhysicalDeviceTerminatorWithSurface(t *testing.T) {
	d := fixture.BuildDispatch(t)
	fn := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, "vkGetPhysicalDevicePresentRectanglesKHR"), registry.ExtensionDevice)

	want := `    struct loader_physical_device_term *phys_dev_term = (struct loader_physical_device_term *)physicalDevice;
    struct loader_icd_term *icd_term = phys_dev_term->this_icd_term;
    if (NULL == icd_term->dispatch.GetPhysicalDevicePresentRectanglesKHR) {
        loader_log(icd_term->this_instance, VULKAN_LOADER_ERROR_BIT | VULKAN_LOADER_DRIVER_BIT, 0,
                   "Driver %s with VkPhysicalDevice \"%s\" does not support GetPhysicalDevicePresentRectanglesKHR",
                    icd_term->scanned_icd->lib_name, phys_dev_term->properties.deviceName);
        return VK_SUCCESS;
    }
    VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)(surface);
    uint8_t icd_index = phys_dev_term->icd_index;
    if (NULL != icd_surface->real_icd_surfaces && (VkSurfaceKHR)NULL != icd_surface->real_icd_surfaces[icd_index]) {
        return icd_term->dispatch.GetPhysicalDevicePresentRectanglesKHR(phys_dev_term->phys_dev, icd_surface->real_icd_surfaces[icd_index], pRectCount, pRects);
    }
    return VK_SUCCESS;
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("terminator mismatch (-want +got):\n%s", diff)
	}
}

func TestPhysicalDeviceTerminatorMissingFunction(t *testing.T) {
	d := fixture.BuildDispatch(t)

	release := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, "vkReleaseDisplayEXT"), registry.ExtensionInstance)
	assert.Contains(t, release, "phys_dev_term->properties.deviceName);\n        return VK_ERROR_INITIALIZATION_FAILED;\n    }\n")
	assert.Contains(t, release, "    return icd_term->dispatch.ReleaseDisplayEXT(phys_dev_term->phys_dev, display);\n")

	features := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, "vkGetPhysicalDeviceFeatures"), registry.ExtensionCore)
	assert.Contains(t, features, "phys_dev_term->properties.deviceName);\n        return;\n    }\n")
	assert.Contains(t, features, "    icd_term->dispatch.GetPhysicalDeviceFeatures(phys_dev_term->phys_dev, pFeatures);\n")

	tools := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, "vkGetPhysicalDeviceToolProperties"), registry.ExtensionCore)
	assert.Contains(t, tools, "phys_dev_term->properties.deviceName);\n        return VK_SUCCESS;\n    }\n")
	assert.NotContains(t, tools, "VK_ERROR_INITIALIZATION_FAILED")
	assert.Contains(t, tools, "    return icd_term->dispatch.GetPhysicalDeviceToolProperties(phys_dev_term->phys_dev, ")
}

func TestSurfaceTerminatorsNeverForwardTheLoaderSurface(t *testing.T) {
	d := fixture.BuildDispatch(t)
	tests := []struct {
		command string
		extType registry.ExtensionType
	}{
		{"vkGetDeviceGroupSurfacePresentModesKHR", registry.ExtensionDevice},
		{"vkGetPhysicalDevicePresentRectanglesKHR", registry.ExtensionDevice},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			fn := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, tt.command), tt.extType)
			assert.NotContains(t, fn, ", surface, ")
			assert.Equal(t, 1, strings.Count(fn, "icd_term->dispatch."+strings.TrimPrefix(tt.command, "vk")+"("), fn)
			assert.True(t, strings.HasSuffix(fn, "    return VK_SUCCESS;\n}\n"), fn)
		})
	}
}

func TestTerminatorPatchesDebugMarkerObject(t *testing.T) {
	d := fixture.BuildDispatch(t)
	fn := loader.SynthesizeTerminator(d, fixture.FindRecord(t, d, "vkDebugMarkerSetObjectNameEXT"), registry.ExtensionDevice)

	want := `    uint32_t icd_index = 0;
    struct loader_device *dev;
    struct loader_icd_term *icd_term = loader_get_icd_and_device(device, &dev, &icd_index);
    if (NULL != icd_term && NULL != icd_term->dispatch.DebugMarkerSetObjectNameEXT) {
        VkDebugMarkerObjectNameInfoEXT local_name_info;
        memcpy(&local_name_info, pNameInfo, sizeof(VkDebugMarkerObjectNameInfoEXT));
        // If this is a physical device, we have to replace it with the proper one for the next call.
        if (pNameInfo->objectType == VK_DEBUG_REPORT_OBJECT_TYPE_PHYSICAL_DEVICE_EXT) {
            struct loader_physical_device_term *phys_dev_term = (struct loader_physical_device_term *)(uintptr_t)pNameInfo->object;
            local_name_info.object = (uint64_t)(uintptr_t)phys_dev_term->phys_dev;
        // If this is a KHR_surface, and the ICD has created its own, we have to replace it with the proper one for the next call.
        } else if (pNameInfo->objectType == VK_DEBUG_REPORT_OBJECT_TYPE_SURFACE_KHR_EXT) {
            if (NULL != icd_term && NULL != icd_term->dispatch.CreateSwapchainKHR) {
                VkIcdSurface *icd_surface = (VkIcdSurface *)(uintptr_t)pNameInfo->object;
                if (NULL != icd_surface->real_icd_surfaces) {
                    local_name_info.object = (uint64_t)icd_surface->real_icd_surfaces[icd_index];
                }
            }
        }
        return icd_term->dispatch.DebugMarkerSetObjectNameEXT(device, &local_name_info);
    } else {
        return VK_SUCCESS;
    }
}
`
	if diff := cmp.Diff(want, body(t, fn)); diff != "" {
		t.Errorf("terminator mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroParameterCommandGetsPlaceholder(t *testing.T) {
	d := fixture.BuildDispatch(t)
	rec := meta.Record{Command: &registry.Command{
		Name:  "vkDoNothingTEST",
		CDecl: "VKAPI_ATTR void VKAPI_CALL vkDoNothingTEST(void);",
	}}

	assert.Equal(t, "\nLOADER_EXPORT VKAPI_ATTR void VKAPI_CALL vkDoNothingTEST(void) {\n"+
		"#error(\"Not implemented. Likely needs to be manually generated!\");\n}\n",
		loader.SynthesizeTrampoline(d, rec, nil))
	assert.Contains(t, loader.SynthesizeTerminator(d, rec, registry.ExtensionCore), "VKAPI_CALL terminator_DoNothingTEST(void) {\n#error")
}

func TestExtensionEnableStructsFollowDeclarationOrder(t *testing.T) {
	d := fixture.BuildDispatch(t)
	out := render(t, d, loader.ExtensionUtilsHeader)

	assert.Contains(t, out, `struct loader_instance_extension_enables {
    int khr_surface : 2;
    int khr_get_physical_device_properties2 : 2;
    int ext_debug_report : 2;
    int ext_direct_mode_display : 2;
    int ext_acquire_xlib_display : 2;
    int ext_debug_utils : 2;
    int khr_portability_enumeration : 2;
};
`)
	assert.Contains(t, out, `struct loader_device_extension_enables {
    int khr_swapchain : 2;
    int ext_debug_marker : 2;
    int khr_device_group : 2;
    int ext_debug_utils : 2;
};
`)
	assert.NotContains(t, out, "android")
}

func TestDriverLookupEntries(t *testing.T) {
	d := fixture.BuildDispatch(t)
	out := render(t, d, loader.TerminatorsSource)

	assert.Contains(t, out, `
    // ---- Vulkan 1.0 commands
    LOOKUP_GIPA(DestroyInstance, true);
    LOOKUP_GIPA(EnumeratePhysicalDevices, true);
    LOOKUP_GIPA(GetPhysicalDeviceFeatures, true);
    LOOKUP_GIPA(CreateDevice, true);
    LOOKUP_GIPA(GetDeviceProcAddr, true);

    // ---- Vulkan 1.1 commands
    LOOKUP_GIPA(GetPhysicalDeviceFeatures2, false);
`)
	assert.NotContains(t, out, "LOOKUP_GIPA(CreateInstance")
	assert.NotContains(t, out, "LOOKUP_GIPA(TrimCommandPool")
}

func TestDeviceProcTerminator(t *testing.T) {
	d := fixture.BuildDispatch(t)
	out := render(t, d, loader.TerminatorsSource)

	assert.Contains(t, out, `
    // ---- VK_EXT_debug_marker extension commands
    if (dev->dev_ext_enables.ext_debug_marker) {
        if(!strcmp(pName, "vkDebugMarkerSetObjectTagEXT")) {
            addr = (PFN_vkVoidFunction)terminator_DebugMarkerSetObjectTagEXT;
        } else if(!strcmp(pName, "vkDebugMarkerSetObjectNameEXT")) {
            addr = (PFN_vkVoidFunction)terminator_DebugMarkerSetObjectNameEXT;
        }
`+"    } // VK_EXT_debug_marker \n")

	// device_group requires an extension the loader does not track
	assert.Contains(t, out, "    if (dev->dev_ext_enables.khr_device_group) {\n")
}

func TestInstanceTerminatorTable(t *testing.T) {
	d := fixture.BuildDispatch(t)
	out := render(t, d, loader.TerminatorsSource)

	assert.Contains(t, out, "const VkLayerInstanceDispatchTable instance_term_disp = {\n")
	assert.Contains(t, out, "    .GetInstanceProcAddr = vkGetInstanceProcAddr,\n")
	assert.Contains(t, out, "    .GetPhysicalDeviceFeatures2KHR = terminator_GetPhysicalDeviceFeatures2,\n")
	assert.NotContains(t, out, ".EnumerateInstanceExtensionProperties =")

	table := render(t, d, loader.LayerDispatchTableHeader)
	assert.Contains(t, table, "    PFN_vkEnumerateInstanceExtensionProperties EnumerateInstanceExtensionProperties;\n")
	assert.Contains(t, table, "#define DEVICE_DISP_TABLE_MAGIC_NUMBER 0x10ADED040410ADEDUL\n")
}

func TestDeviceTableKeepsOnlyDeviceCommands(t *testing.T) {
	d := fixture.BuildDispatch(t)
	out := render(t, d, loader.LayerDispatchTableHeader)
	_, dev, ok := strings.Cut(out, "typedef struct VkLayerDispatchTable_ {")
	require.True(t, ok)

	assert.Contains(t, dev, "    // ---- VK_EXT_debug_utils extension commands\n    PFN_vkSetDebugUtilsObjectNameEXT SetDebugUtilsObjectNameEXT;\n")
	assert.Contains(t, dev, "    PFN_vkGetDeviceGroupSurfacePresentModesKHR GetDeviceGroupSurfacePresentModesKHR;\n")
	assert.NotContains(t, dev, "GetPhysicalDevicePresentRectanglesKHR")
	assert.NotContains(t, dev, "CreateDebugUtilsMessengerEXT")
	assert.NotContains(t, dev, "CreateDebugReportCallbackEXT")
}

func TestCreateDeviceHardCodesFollowTrackedExtensions(t *testing.T) {
	out := render(t, fixture.BuildDispatch(t), loader.ExtensionUtilsSource)
	assert.Contains(t, out, "    dev->dev_ext_enables.ext_debug_utils = phys_dev_term->this_icd_term->this_instance->inst_ext_enables.ext_debug_utils;\n")
	assert.Contains(t, out, "    if (!dev->dev_ext_enables.khr_device_group && phys_dev_term->properties.apiVersion >= VK_API_VERSION_1_1) {\n")
	assert.Contains(t, out, "        if (!strcmp(pCreateInfo->ppEnabledExtensionNames[i], VK_KHR_SWAPCHAIN_EXTENSION_NAME)) {\n")

	r := rules.Default()
	r.LoaderTrackedDeviceExtensions = rules.NewSet()
	r.DeviceCommandsNeedingTerminator = rules.NewSet()
	d := group.Build(fixture.BuildRegistry(t, fixture.LoadDocument(t), r), classify.New(r))

	out = render(t, d, loader.ExtensionUtilsSource)
	assert.NotContains(t, out, "dev->dev_ext_enables.ext_debug_utils =")
	assert.NotContains(t, out, "dev->dev_ext_enables.khr_device_group = 1;")
}

func TestTerminatorDispatchStruct(t *testing.T) {
	out := render(t, fixture.BuildDispatch(t), loader.TerminatorsHeader)

	assert.Contains(t, out, "struct loader_icd_term_dispatch {\n\n    // ---- Vulkan API version 1.0  ----\n    PFN_vkCreateInstance CreateInstance;\n")
	assert.NotContains(t, out, "PFN_vkGetInstanceProcAddr GetInstanceProcAddr;")
	assert.Contains(t, out, "    PFN_vkGetDeviceProcAddr GetDeviceProcAddr;\n")
	assert.NotContains(t, out, "PFN_vkQueueWaitIdle")
	assert.Contains(t, out, "VKAPI_ATTR void VKAPI_CALL terminator_GetPhysicalDeviceFeatures2( VkPhysicalDevice physicalDevice, VkPhysicalDeviceFeatures2* pFeatures);\n")
}

func TestGIPAHelperRoutesAliases(t *testing.T) {
	out := render(t, fixture.BuildDispatch(t), loader.TrampolinesSource)

	assert.Contains(t, out, `    if (!strcmp("vkGetPhysicalDeviceFeatures2KHR", name)) {
        *addr = (ptr_instance->inst_ext_enables.khr_get_physical_device_properties2 == 1)
                     ? (void *)vkGetPhysicalDeviceFeatures2
                     : NULL;
        return true;
    }
`)
	assert.Contains(t, out, `    if (!strcmp("vkCmdDrawIndirectCountAMD", name)) {
        *addr = (void *)CmdDrawIndirectCountKHR;
        return true;
    }
`)
	assert.NotContains(t, out, `"vkCreateDebugReportCallbackEXT"`)
	assert.NotContains(t, out, `"vkCreateDebugUtilsMessengerEXT"`)
}
