// Package classify decides, per command, which loader indirections have to be
// synthesized. Every decision is a pure function of the command, its owning
// extension and the injected rule tables.
package classify

import (
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

type Engine struct {
	rules *rules.Rules
}

func New(r *rules.Rules) *Engine {
	if r == nil {
		r = rules.Default()
	}
	return &Engine{rules: r}
}

func (e *Engine) Rules() *rules.Rules { return e.rules }

// Classify never fails. A nil extension is treated as an unnamed, untyped one.
func (e *Engine) Classify(cmd *registry.Command, ext *registry.Extension) meta.Record {
	return meta.Record{
		Command:                 cmd,
		NeedsTrampoline:         e.NeedsTrampoline(cmd, ext),
		NeedsTerminator:         e.NeedsTerminator(cmd, ext),
		NeedsTerminatorDispatch: e.NeedsTerminatorDispatch(cmd, ext),
		NeedsDeviceExtOverride:  e.NeedsDeviceExtOverride(cmd),
		Alias:                   cmd.Alias,
	}
}

func (e *Engine) NeedsTrampoline(cmd *registry.Command, ext *registry.Extension) bool {
	name, typ, core := extInfo(ext)
	if e.rules.WSIExtensions.Has(name) || e.rules.ManualCommands.Has(cmd.Name) {
		return false
	}
	// the alias target's trampoline covers this entry point
	if cmd.Alias != "" {
		return false
	}
	if core {
		return true
	}
	return typ != registry.ExtensionInstance || e.rules.InstanceExtensionOverrides.Has(name)
}

func (e *Engine) NeedsTerminator(cmd *registry.Command, ext *registry.Extension) bool {
	name, typ, _ := extInfo(ext)
	if e.rules.WSIExtensions.Has(name) {
		return false
	}
	if typ == registry.ExtensionInstance && !e.rules.InstanceExtensionOverrides.Has(name) {
		return false
	}
	if e.isHandWritten(cmd.Name) {
		return false
	}
	if e.rules.InstanceRootHandles.Has(cmd.HandleType) || e.rules.DeviceCommandsNeedingTerminator.Has(cmd.Name) {
		return true
	}
	return cmd.HasParamType(e.rules.TerminatorParamTypes.Has)
}

func (e *Engine) NeedsTerminatorDispatch(cmd *registry.Command, ext *registry.Extension) bool {
	if e.NeedsTerminator(cmd, ext) {
		return true
	}
	name, _, _ := extInfo(ext)
	return e.rules.ManualCommands.Has(cmd.Name) ||
		e.rules.ManualTerminators.Has(cmd.Name) ||
		e.rules.InstanceExtensionOverrides.Has(name) ||
		e.rules.WSIExtensions.Has(name) ||
		e.IsInstanceType(cmd.HandleType, name)
}

func (e *Engine) NeedsDeviceExtOverride(cmd *registry.Command) bool {
	return e.rules.DeviceCommandsNeedingTerminator.Has(cmd.Name)
}

// IsInstanceType reports whether a command with this first-parameter type
// lives in the instance dispatch table for extName.
func (e *Engine) IsInstanceType(handleType, extName string) bool {
	return e.rules.InstanceTypeHandles.Has(handleType) && !e.rules.IsExcludedName(extName)
}

func (e *Engine) isHandWritten(cmd string) bool {
	return e.rules.ManualCommands.Has(cmd) ||
		e.rules.ManualTerminators.Has(cmd) ||
		e.rules.InstanceExtensionManualTerminators.Has(cmd)
}

func extInfo(ext *registry.Extension) (string, registry.ExtensionType, bool) {
	if ext == nil {
		return "", registry.ExtensionCore, false
	}
	return ext.Name, ext.Type, ext.IsCore
}
