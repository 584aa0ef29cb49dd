// Package rules holds the fixed exception tables that steer classification
// and synthesis. None of these lists can be derived from registry metadata;
// they encode what the loader implements by hand and which object kinds it
// has to translate on the way to a driver.
package rules

import (
	"log/slog"
	"strings"

	"github.com/Alia5/loadergen/internal/codegen/registry"
)

// Handle type names the synthesizer branches on.
const (
	HandleInstance       = "VkInstance"
	HandlePhysicalDevice = "VkPhysicalDevice"
	HandleDevice         = "VkDevice"
	HandleSurface        = "VkSurfaceKHR"
	TypeSurfaceInfo      = "VkPhysicalDeviceSurfaceInfo2KHR"
	ResultType           = "VkResult"
)

// ObjectPatch describes a debug naming/tagging command whose info struct
// embeds an object handle that must be swapped for the driver's own handle.
type ObjectPatch struct {
	// NameFragment selects the commands the patch applies to.
	NameFragment       string `json:"nameFragment" yaml:"nameFragment" toml:"nameFragment"`
	InfoType           string `json:"infoType" yaml:"infoType" toml:"infoType"`
	Param              string `json:"param" yaml:"param" toml:"param"`
	Local              string `json:"local" yaml:"local" toml:"local"`
	ObjectField        string `json:"objectField" yaml:"objectField" toml:"objectField"`
	PhysicalDeviceType string `json:"physicalDeviceType" yaml:"physicalDeviceType" toml:"physicalDeviceType"`
	SurfaceType        string `json:"surfaceType" yaml:"surfaceType" toml:"surfaceType"`
}

// PromotedExtension is a device extension the loader treats as enabled once
// the physical device reports at least APIVersion.
type PromotedExtension struct {
	Extension  string `json:"extension" yaml:"extension" toml:"extension"`
	APIVersion string `json:"apiVersion" yaml:"apiVersion" toml:"apiVersion"`
}

// Rules is constructed once and only read afterwards.
type Rules struct {
	WSIExtensions                      Set
	ManualCommands                     Set
	InstanceExtensionOverrides         Set
	ManualTerminators                  Set
	InstanceExtensionManualTerminators Set
	DeviceCommandsNeedingTerminator    Set
	LoaderTrackedDeviceExtensions      Set
	GIPAAvoidExtensions                Set
	GIPAAvoidCommands                  Set
	NullCheckedExtensions              Set
	TerminatorParamTypes               Set
	InstanceTypeHandles                Set
	InstanceRootHandles                Set
	DeviceRootHandles                  Set
	// AlwaysHandWritten commands never show up in runtime-populated tables.
	AlwaysHandWritten Set
	// DriverLookupSkip commands are not fetched from the driver GIPA.
	DriverLookupSkip Set
	// TerminatorTableSkip commands have no slot in the ICD dispatch struct.
	TerminatorTableSkip Set
	// PreInstanceCommands can be called before an instance exists.
	PreInstanceCommands               Set
	TerminatorPrototypeExtensions     Set
	DeviceTableInstanceExtensions     Set
	InstanceInheritedDeviceExtensions Set
	VersionPromotedDeviceExtensions   []PromotedExtension
	ExcludedNameFragment              string
	CorePrefix                        string
	ObjectPatches                     []ObjectPatch
}

// Default returns the tables the loader ships with.
func Default() *Rules {
	return &Rules{
		WSIExtensions: NewSet(
			"VK_KHR_android_surface",
			"VK_KHR_display",
			"VK_KHR_display_swapchain",
			"VK_KHR_get_display_properties2",
			"VK_KHR_get_surface_capabilities2",
			"VK_KHR_surface",
			"VK_KHR_swapchain",
			"VK_KHR_wayland_surface",
			"VK_KHR_win32_surface",
			"VK_KHR_xcb_surface",
			"VK_KHR_xlib_surface",
			"VK_EXT_directfb_surface",
			"VK_EXT_headless_surface",
			"VK_EXT_metal_surface",
			"VK_FUCHSIA_imagepipe_surface",
			"VK_GGP_stream_descriptor_surface",
			"VK_MVK_macos_surface",
			"VK_MVK_ios_surface",
			"VK_NN_vi_surface",
			"VK_QNX_screen_surface",
		),
		ManualCommands: NewSet(
			// 1.0
			"vkGetInstanceProcAddr",
			"vkGetDeviceProcAddr",
			"vkEnumerateInstanceExtensionProperties",
			"vkEnumerateInstanceLayerProperties",
			"vkEnumerateInstanceVersion",
			"vkCreateInstance",
			"vkDestroyInstance",
			"vkEnumerateDeviceLayerProperties",
			"vkCreateDevice",
			"vkDestroyDevice",
			"vkEnumeratePhysicalDevices",
			// 1.1
			"vkEnumeratePhysicalDeviceGroups",
			// VK_EXT_debug_utils
			"vkCreateDebugUtilsMessengerEXT",
			"vkDestroyDebugUtilsMessengerEXT",
			"vkSubmitDebugUtilsMessageEXT",
			// VK_EXT_full_screen_exclusive
			"vkGetPhysicalDeviceSurfacePresentModes2EXT",
			"vkGetDeviceGroupSurfacePresentModes2EXT",
		),
		InstanceExtensionOverrides: NewSet(
			"VK_EXT_acquire_drm_display",
			"VK_EXT_acquire_xlib_display",
			"VK_EXT_debug_utils",
			"VK_EXT_direct_mode_display",
			"VK_EXT_display_surface_counter",
			"VK_EXT_full_screen_exclusive",
			"VK_NV_external_memory_capabilities",
		),
		ManualTerminators: NewSet(
			// 1.0
			"vkEnumerateInstanceExtensionProperties",
			"vkEnumerateInstanceLayerProperties",
			"vkEnumerateDeviceExtensionProperties",
			// 1.1
			"vkEnumerateInstanceVersion",
			"vkGetPhysicalDeviceFeatures2",
			"vkGetPhysicalDeviceProperties2",
			"vkGetPhysicalDeviceExternalBufferProperties",
			"vkGetPhysicalDeviceExternalSemaphoreProperties",
			"vkGetPhysicalDeviceExternalFenceProperties",
			"vkGetPhysicalDeviceFormatProperties2",
			"vkGetPhysicalDeviceImageFormatProperties2",
			"vkGetPhysicalDeviceQueueFamilyProperties2",
			"vkGetPhysicalDeviceMemoryProperties2",
			"vkGetPhysicalDeviceSparseImageFormatProperties2",
			// 1.3
			"vkGetPhysicalDeviceToolProperties",
		),
		InstanceExtensionManualTerminators: NewSet(
			"vkAcquireXlibDisplayEXT",
			"vkGetRandROutputDisplayEXT",
			"vkGetPhysicalDeviceSurfaceCapabilities2EXT",
			"vkGetPhysicalDeviceSurfacePresentModes2EXT",
			"vkGetDeviceGroupSurfacePresentModes2EXT",
			"vkGetPhysicalDeviceExternalImageFormatPropertiesNV",
		),
		DeviceCommandsNeedingTerminator: NewSet(
			"vkGetDeviceProcAddr",
			// VK_KHR_swapchain
			"vkCreateSwapchainKHR",
			"vkCreateSharedSwapchainsKHR",
			"vkGetDeviceGroupSurfacePresentModesKHR",
			"vkGetDeviceGroupSurfacePresentModes2EXT",
			// VK_EXT_debug_marker
			"vkDebugMarkerSetObjectTagEXT",
			"vkDebugMarkerSetObjectNameEXT",
			// VK_EXT_debug_utils is an instance extension with device commands
			"vkSetDebugUtilsObjectNameEXT",
			"vkSetDebugUtilsObjectTagEXT",
			"vkQueueBeginDebugUtilsLabelEXT",
			"vkQueueEndDebugUtilsLabelEXT",
			"vkQueueInsertDebugUtilsLabelEXT",
			"vkCmdBeginDebugUtilsLabelEXT",
			"vkCmdEndDebugUtilsLabelEXT",
			"vkCmdInsertDebugUtilsLabelEXT",
		),
		LoaderTrackedDeviceExtensions: NewSet("VK_KHR_device_group"),
		GIPAAvoidExtensions:           NewSet("VK_EXT_debug_report"),
		GIPAAvoidCommands: NewSet(
			"vkCreateDebugUtilsMessengerEXT",
			"vkDestroyDebugUtilsMessengerEXT",
			"vkSubmitDebugUtilsMessageEXT",
		),
		NullCheckedExtensions: NewSet("VK_EXT_debug_utils"),
		TerminatorParamTypes:  NewSet(HandleInstance, HandlePhysicalDevice, HandleSurface, TypeSurfaceInfo),
		InstanceTypeHandles:   NewSet(HandleInstance, HandlePhysicalDevice, HandleSurface),
		InstanceRootHandles:   NewSet(HandleInstance, HandlePhysicalDevice),
		DeviceRootHandles:     NewSet(HandleDevice, "VkQueue", "VkCommandBuffer"),
		AlwaysHandWritten: NewSet(
			"vkCreateInstance",
			"vkCreateDevice",
			"vkEnumerateInstanceExtensionProperties",
			"vkEnumerateInstanceLayerProperties",
			"vkEnumerateInstanceVersion",
		),
		DriverLookupSkip: NewSet(
			"vkGetInstanceProcAddr",
			"vkEnumerateDeviceLayerProperties",
			"vkCreateInstance",
			"vkEnumerateInstanceExtensionProperties",
			"vkEnumerateInstanceLayerProperties",
			"vkEnumerateInstanceVersion",
		),
		TerminatorTableSkip: NewSet("vkGetInstanceProcAddr", "vkEnumerateDeviceLayerProperties"),
		PreInstanceCommands: NewSet(
			"vkEnumerateInstanceExtensionProperties",
			"vkEnumerateInstanceLayerProperties",
			"vkEnumerateInstanceVersion",
		),
		TerminatorPrototypeExtensions:     NewSet("VK_EXT_debug_utils"),
		DeviceTableInstanceExtensions:     NewSet("VK_EXT_debug_utils"),
		InstanceInheritedDeviceExtensions: NewSet("VK_EXT_debug_utils"),
		VersionPromotedDeviceExtensions: []PromotedExtension{
			{Extension: "VK_KHR_device_group", APIVersion: "VK_API_VERSION_1_1"},
		},
		ExcludedNameFragment: "android",
		CorePrefix:           "VK_VERSION_",
		ObjectPatches: []ObjectPatch{
			{
				NameFragment:       "DebugMarkerSetObjectName",
				InfoType:           "VkDebugMarkerObjectNameInfoEXT",
				Param:              "pNameInfo",
				Local:              "local_name_info",
				ObjectField:        "object",
				PhysicalDeviceType: "VK_DEBUG_REPORT_OBJECT_TYPE_PHYSICAL_DEVICE_EXT",
				SurfaceType:        "VK_DEBUG_REPORT_OBJECT_TYPE_SURFACE_KHR_EXT",
			},
			{
				NameFragment:       "DebugMarkerSetObjectTag",
				InfoType:           "VkDebugMarkerObjectTagInfoEXT",
				Param:              "pTagInfo",
				Local:              "local_tag_info",
				ObjectField:        "object",
				PhysicalDeviceType: "VK_DEBUG_REPORT_OBJECT_TYPE_PHYSICAL_DEVICE_EXT",
				SurfaceType:        "VK_DEBUG_REPORT_OBJECT_TYPE_SURFACE_KHR_EXT",
			},
			{
				NameFragment:       "SetDebugUtilsObjectName",
				InfoType:           "VkDebugUtilsObjectNameInfoEXT",
				Param:              "pNameInfo",
				Local:              "local_name_info",
				ObjectField:        "objectHandle",
				PhysicalDeviceType: "VK_OBJECT_TYPE_PHYSICAL_DEVICE",
				SurfaceType:        "VK_OBJECT_TYPE_SURFACE_KHR",
			},
			{
				NameFragment:       "SetDebugUtilsObjectTag",
				InfoType:           "VkDebugUtilsObjectTagInfoEXT",
				Param:              "pTagInfo",
				Local:              "local_tag_info",
				ObjectField:        "objectHandle",
				PhysicalDeviceType: "VK_OBJECT_TYPE_PHYSICAL_DEVICE",
				SurfaceType:        "VK_OBJECT_TYPE_SURFACE_KHR",
			},
		},
	}
}

// ObjectPatchFor returns the first patch whose fragment occurs in command.
func (r *Rules) ObjectPatchFor(command string) (ObjectPatch, bool) {
	for _, p := range r.ObjectPatches {
		if p.NameFragment != "" && strings.Contains(command, p.NameFragment) {
			return p, true
		}
	}
	return ObjectPatch{}, false
}

// IsExcludedName reports whether name belongs to the excluded platform.
func (r *Rules) IsExcludedName(name string) bool {
	return r.ExcludedNameFragment != "" && strings.Contains(strings.ToLower(name), r.ExcludedNameFragment)
}

// RegistryOptions derives the ingestion options from the tables.
func (r *Rules) RegistryOptions(logger *slog.Logger) registry.Options {
	return registry.Options{
		InstanceRootHandles:  r.InstanceRootHandles.Values(),
		DeviceRootHandles:    r.DeviceRootHandles.Values(),
		ExcludedNameFragment: r.ExcludedNameFragment,
		CorePrefix:           r.CorePrefix,
		Logger:               logger,
	}
}
