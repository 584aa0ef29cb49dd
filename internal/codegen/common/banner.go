package common

import "strings"

// ToolName is the name generated files point readers to.
const ToolName = "loadergen"

const generatedNotice = "// *** THIS FILE IS GENERATED - DO NOT EDIT ***\n"

// Banner is the comment every generated artifact starts with.
func Banner() string {
	return generatedNotice + "// See " + ToolName + " for modifications\n"
}

// IsGenerated reports whether content starts with the generated-file notice.
func IsGenerated(content []byte) bool {
	return strings.HasPrefix(string(content), generatedNotice)
}

// Include renders an include directive. System headers are given with their
// angle brackets; an empty name yields an empty separator line.
func Include(name string) string {
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "<"):
		return "#include " + name
	default:
		return `#include "` + name + `"`
	}
}
