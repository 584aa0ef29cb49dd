// Package group buckets classified commands into per-version and
// per-extension groups and resolves alias reachability between them.
package group

import (
	"sort"

	"github.com/samber/lo"

	"github.com/Alia5/loadergen/internal/codegen/classify"
	"github.com/Alia5/loadergen/internal/codegen/meta"
	"github.com/Alia5/loadergen/internal/codegen/registry"
	"github.com/Alia5/loadergen/internal/codegen/rules"
)

// slot locates a record inside the groups under construction.
type slot struct {
	core  *meta.CoreGroup
	ext   *meta.ExtGroup
	dev   bool
	index int
}

func (s slot) record() *meta.Record {
	switch {
	case s.ext != nil:
		return &s.ext.Commands[s.index]
	case s.dev:
		return &s.core.DeviceCommands[s.index]
	default:
		return &s.core.InstanceCommands[s.index]
	}
}

// Build classifies every command of reg and returns the grouped model. reg
// is only read.
func Build(reg *registry.Registry, engine *classify.Engine) *meta.Dispatch {
	d := &meta.Dispatch{
		Registry: reg,
		Rules:    engine.Rules(),
	}
	slots := make(map[string]slot)

	for _, ext := range reg.Extensions() {
		if ext.IsCore {
			if g := buildCoreGroup(reg, engine, ext, slots); g != nil {
				d.CoreGroups = append(d.CoreGroups, g)
			}
			continue
		}
		d.ExtGroups = append(d.ExtGroups, buildExtGroup(reg, engine, ext, slots))
	}

	sort.SliceStable(d.CoreGroups, func(i, j int) bool {
		a, b := d.CoreGroups[i], d.CoreGroups[j]
		if a.Major != b.Major {
			return a.Major < b.Major
		}
		return a.Minor < b.Minor
	})

	resolveAliases(reg, d, slots)
	deriveExtensionLists(d, engine.Rules())
	return d
}

func buildCoreGroup(reg *registry.Registry, engine *classify.Engine, ext *registry.Extension, slots map[string]slot) *meta.CoreGroup {
	g := &meta.CoreGroup{Name: ext.Name, Major: ext.Major, Minor: ext.Minor}
	for _, name := range ext.Commands {
		cmd, ok := reg.Command(name)
		if !ok {
			continue
		}
		rec := engine.Classify(cmd, ext)
		g.NeedsTrampoline = g.NeedsTrampoline || rec.NeedsTrampoline
		g.NeedsTerminator = g.NeedsTerminator || rec.NeedsTerminator
		g.NeedsDeviceExtOverride = g.NeedsDeviceExtOverride || rec.NeedsDeviceExtOverride

		if cmd.Class == registry.DispatchDevice {
			slots[name] = slot{core: g, dev: true, index: len(g.DeviceCommands)}
			g.DeviceCommands = append(g.DeviceCommands, rec)
		} else {
			slots[name] = slot{core: g, index: len(g.InstanceCommands)}
			g.InstanceCommands = append(g.InstanceCommands, rec)
		}
	}
	if len(g.InstanceCommands)+len(g.DeviceCommands) == 0 {
		return nil
	}
	return g
}

func buildExtGroup(reg *registry.Registry, engine *classify.Engine, ext *registry.Extension, slots map[string]slot) *meta.ExtGroup {
	g := &meta.ExtGroup{
		Name:     ext.Name,
		Type:     ext.Type,
		Define:   ext.Define,
		Protect:  ext.Protect,
		Requires: append([]string(nil), ext.Requires...),
	}
	for _, name := range ext.Commands {
		cmd, ok := reg.Command(name)
		if !ok {
			continue
		}
		rec := engine.Classify(cmd, ext)
		g.HasInstanceCommands = g.HasInstanceCommands || engine.IsInstanceType(cmd.HandleType, ext.Name)
		g.NeedsDeviceExtOverride = g.NeedsDeviceExtOverride || rec.NeedsDeviceExtOverride
		g.NeedsTrampoline = g.NeedsTrampoline || rec.NeedsTrampoline
		g.NeedsTerminator = g.NeedsTerminator || rec.NeedsTerminator
		g.RequiresTerminatorDispatch = g.RequiresTerminatorDispatch || rec.NeedsTerminatorDispatch

		slots[name] = slot{ext: g, index: len(g.Commands)}
		g.Commands = append(g.Commands, rec)
	}
	return g
}

// resolveAliases is the second phase: an extension command aliasing a core
// command makes the core record reachable through the extension, an alias
// into another extension is recorded on the extension command itself.
func resolveAliases(reg *registry.Registry, d *meta.Dispatch, slots map[string]slot) {
	for _, g := range d.ExtGroups {
		for i := range g.Commands {
			rec := &g.Commands[i]
			alias := rec.Command.Alias
			if alias == "" {
				continue
			}
			owner, ok := reg.Owner(alias)
			if !ok {
				continue
			}
			if !owner.IsCore {
				rec.AliasExtension = owner.Name
				continue
			}
			target, ok := slots[alias]
			if !ok || target.ext != nil {
				continue
			}
			core := target.record()
			core.Alias = rec.Command.Name
			core.AliasExtension = g.Name
			rec.AliasExtension = ""
		}
	}
}

func deriveExtensionLists(d *meta.Dispatch, r *rules.Rules) {
	d.InstanceExtensions = lo.Filter(d.ExtGroups, func(g *meta.ExtGroup, _ int) bool {
		return g.IsInstance() && !r.IsExcludedName(g.Name)
	})
	d.TrackedDeviceExtensions = lo.Filter(d.ExtGroups, func(g *meta.ExtGroup, _ int) bool {
		return g.NeedsDeviceExtOverride || r.LoaderTrackedDeviceExtensions.Has(g.Name)
	})

	physDevExts := lo.Filter(d.ExtGroups, func(g *meta.ExtGroup, _ int) bool {
		if g.IsInstance() || r.IsExcludedName(g.Name) {
			return false
		}
		return lo.SomeBy(g.Commands, func(rec meta.Record) bool {
			return rec.Command.HandleType == rules.HandlePhysicalDevice
		})
	})
	d.DriverDeviceExtensions = lo.UniqBy(append(append([]*meta.ExtGroup(nil), d.TrackedDeviceExtensions...), physDevExts...),
		func(g *meta.ExtGroup) string { return g.Name })
}
