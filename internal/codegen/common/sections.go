package common

import (
	"fmt"
	"strings"
)

// SectionHeader renders a comment header introducing a block of generated
// code. Small headers are a single comment line, large ones are framed by a
// dash rule of the same width.
func SectionHeader(small, indent bool, title string) string {
	pad := ""
	if indent {
		pad = "    "
	}
	dashes := strings.Repeat("-", len(title))

	var b strings.Builder
	b.WriteString("\n")
	if !small {
		b.WriteString(fmt.Sprintf("%s// %s\n", pad, dashes))
	}
	b.WriteString(fmt.Sprintf("%s// %s\n", pad, title))
	if !small {
		b.WriteString(fmt.Sprintf("%s// %s\n\n", pad, dashes))
	}
	return b.String()
}

// CoreSectionTitle titles a block belonging to an API version.
func CoreSectionTitle(major, minor int, what string) string {
	return fmt.Sprintf("---- Vulkan API version %d.%d %s ----", major, minor, what)
}

// ExtSectionTitle titles a block belonging to an extension.
func ExtSectionTitle(extType, extName, what string) string {
	return fmt.Sprintf("---- Vulkan %s extension %s %s ----", extType, extName, what)
}

// CommandsComment is the one-line marker used inside function bodies and
// table initializers.
func CommandsComment(label string) string {
	return fmt.Sprintf("\n    // ---- %s commands\n", label)
}

// VersionLabel renders major.minor the way tables label core versions.
func VersionLabel(major, minor int) string {
	return fmt.Sprintf("Vulkan %d.%d", major, minor)
}

// StripAPIPrefix drops the "vk" prefix of a command name.
func StripAPIPrefix(name string) string {
	return strings.TrimPrefix(name, "vk")
}
