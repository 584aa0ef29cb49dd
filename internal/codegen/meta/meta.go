package meta

import (
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// Record is the classification of one command inside its owning group.
type Record struct {
	Command                 *registry.Command
	NeedsTrampoline         bool
	NeedsTerminator         bool
	NeedsTerminatorDispatch bool
	NeedsDeviceExtOverride  bool
	// Alias starts as the command's declared alias. A core command reachable
	// through a later extension command gets that command here instead.
	Alias string
	// AliasExtension names the extension the trampoline may fall back to.
	AliasExtension string
}

func (r Record) Name() string { return r.Command.Name }

// HasAlias reports whether the record carries any alias, declared or resolved.
func (r Record) HasAlias() bool { return r.Alias != "" }

type CoreGroup struct {
	Name  string
	Major int
	Minor int
	// InstanceCommands holds global and instance-rooted commands.
	InstanceCommands       []Record
	DeviceCommands         []Record
	NeedsTrampoline        bool
	NeedsTerminator        bool
	NeedsDeviceExtOverride bool
}

// Required reports whether the drivers must export every command of this
// version, which only holds for 1.0.
func (g *CoreGroup) Required() bool {
	return g.Major == 1 && g.Minor == 0
}

type ExtGroup struct {
	Name                       string
	Type                       registry.ExtensionType
	Define                     string
	Protect                    string
	Requires                   []string
	Commands                   []Record
	HasInstanceCommands        bool
	NeedsDeviceExtOverride     bool
	NeedsTrampoline            bool
	NeedsTerminator            bool
	RequiresTerminatorDispatch bool
}

func (g *ExtGroup) VarName() string {
	return registry.ExtensionVarName(g.Name)
}

func (g *ExtGroup) IsInstance() bool {
	return g.Type == registry.ExtensionInstance
}

// Dispatch holds all grouped and classified data shared between the
// generation targets. It is read-only once built.
type Dispatch struct {
	CoreGroups []*CoreGroup
	ExtGroups  []*ExtGroup
	// InstanceExtensions are the instance extensions the loader tracks enables for.
	InstanceExtensions []*ExtGroup
	// TrackedDeviceExtensions need a device-level override or are tracked explicitly.
	TrackedDeviceExtensions []*ExtGroup
	// DriverDeviceExtensions are tracked extensions plus device extensions
	// exposing physical-device commands.
	DriverDeviceExtensions []*ExtGroup
	Registry               *registry.Registry
	Rules                  *rules.Rules
}

func (d *Dispatch) ExtGroup(name string) (*ExtGroup, bool) {
	for _, g := range d.ExtGroups {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

// IsTrackedDeviceExtension reports whether name is one of TrackedDeviceExtensions.
func (d *Dispatch) IsTrackedDeviceExtension(name string) bool {
	for _, g := range d.TrackedDeviceExtensions {
		if g.Name == name {
			return true
		}
	}
	return false
}

// Records returns every record, core groups first, in emission order.
func (d *Dispatch) Records() []Record {
	var out []Record
	for _, g := range d.CoreGroups {
		out = append(out, g.InstanceCommands...)
		out = append(out, g.DeviceCommands...)
	}
	for _, g := range d.ExtGroups {
		out = append(out, g.Commands...)
	}
	return out
}
