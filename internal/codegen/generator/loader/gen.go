// Package loader renders the loader's dispatch layer: trampolines,
// terminators, the dispatch tables and the extension bookkeeping around them.
// Every artifact is a single linear pass over a built meta.Dispatch.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Alia5/loadergen/internal/codegen/common"
	"github.com/Alia5/loadergen/internal/codegen/meta"
)

var ErrUnknownTarget = errors.New("unknown generation target")

// Target file names.
const (
	LayerDispatchTableHeader = "vk_layer_dispatch_table.h"
	ExtensionUtilsHeader     = "vk_loader_extension_utils.h"
	ExtensionUtilsSource     = "vk_loader_extension_utils.c"
	TrampolinesHeader        = "vk_loader_trampolines.h"
	TrampolinesSource        = "vk_loader_trampolines.c"
	TerminatorsHeader        = "vk_loader_terminators.h"
	TerminatorsSource        = "vk_loader_terminators.c"
)

type section func(e *emitter)

type target struct {
	includes []string
	sections []section
}

var loaderCoreIncludes = []string{
	"<stdlib.h>",
	"<string.h>",
	"",
	"allocation.h",
	"debug_utils.h",
	"gpa_helper.h",
	"loader.h",
	"log.h",
	"vk_loader_platform.h",
}

var targets = map[string]target{
	LayerDispatchTableHeader: {
		sections: []section{
			func(e *emitter) { e.instanceDispatchTable(true) },
			(*emitter).deviceDispatchTable,
		},
	},
	ExtensionUtilsHeader: {
		sections: []section{
			(*emitter).extensionPrototypes,
			(*emitter).extensionEnableStructs,
		},
	},
	ExtensionUtilsSource: {
		includes: loaderCoreIncludes,
		sections: []section{
			(*emitter).driverExtensionChecks,
			(*emitter).extensionEnableChecks,
			(*emitter).instanceExtensionWhitelist,
			(*emitter).dispatchTableInit,
		},
	},
	TrampolinesHeader: {
		sections: []section{
			(*emitter).trampolinePrototypes,
		},
	},
	TrampolinesSource: {
		includes: append(append([]string(nil), loaderCoreIncludes...),
			"vk_loader_extension_utils.h",
			"wsi.h",
			"<vulkan/vk_icd.h>",
		),
		sections: []section{
			(*emitter).trampolineDefinitions,
			(*emitter).extensionInstanceGPA,
		},
	},
	TerminatorsHeader: {
		sections: []section{
			(*emitter).additionalTerminatorPrototypes,
			(*emitter).terminatorPrototypes,
			(*emitter).terminatorDispatchStruct,
		},
	},
	TerminatorsSource: {
		includes: []string{
			"allocation.h",
			"loader.h",
			"log.h",
			"debug_utils.h",
			"extension_manual.h",
			"vk_loader_platform.h",
			"wsi.h",
			"<vulkan/vk_icd.h>",
		},
		sections: []section{
			(*emitter).terminatorDefinitions,
			(*emitter).terminatorFunctions,
			func(e *emitter) { e.instanceDispatchTable(false) },
		},
	},
}

// Targets lists every artifact name in a fixed order.
func Targets() []string {
	return []string{
		LayerDispatchTableHeader,
		ExtensionUtilsHeader,
		ExtensionUtilsSource,
		TrampolinesHeader,
		TrampolinesSource,
		TerminatorsHeader,
		TerminatorsSource,
	}
}

// IsTarget reports whether name is a known artifact.
func IsTarget(name string) bool {
	_, ok := targets[name]
	return ok
}

const fileTmpl = `{{banner}}
// clang-format off
{{- if .Header}}
#pragma once
{{- end}}
{{- range .Includes}}
{{include .}}
{{- end}}

{{.Body}}// clang-format on
`

var fileTemplate = template.Must(template.New("file").Funcs(template.FuncMap{
	"banner":  common.Banner,
	"include": common.Include,
}).Parse(fileTmpl))

// Render produces the full text of the named artifact. d is only read, so
// several targets may be rendered from the same model concurrently.
func Render(d *meta.Dispatch, name string) ([]byte, error) {
	t, ok := targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (supported: %v)", ErrUnknownTarget, name, Targets())
	}

	e := newEmitter(d)
	for _, s := range t.sections {
		s(e)
	}

	data := struct {
		Header   bool
		Includes []string
		Body     string
	}{
		Header:   strings.HasSuffix(name, ".h"),
		Includes: t.includes,
		Body:     e.String(),
	}

	var buf bytes.Buffer
	if err := fileTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("exec %s tmpl: %w", name, err)
	}
	return buf.Bytes(), nil
}
