package rules

import (
	"encoding/json"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml"
	yaml "gopkg.in/yaml.v3"

	"github.com/Alia5/loadergen/internal/codegen/registry"
)

// File is the on-disk form of Rules. A list that is present replaces the
// default list, an absent one keeps it.
type File struct {
	WSIExtensions                      []string            `json:"wsiExtensions,omitempty" yaml:"wsiExtensions,omitempty" toml:"wsiExtensions,omitempty"`
	ManualCommands                     []string            `json:"manualCommands,omitempty" yaml:"manualCommands,omitempty" toml:"manualCommands,omitempty"`
	InstanceExtensionOverrides         []string            `json:"instanceExtensionOverrides,omitempty" yaml:"instanceExtensionOverrides,omitempty" toml:"instanceExtensionOverrides,omitempty"`
	ManualTerminators                  []string            `json:"manualTerminators,omitempty" yaml:"manualTerminators,omitempty" toml:"manualTerminators,omitempty"`
	InstanceExtensionManualTerminators []string            `json:"instanceExtensionManualTerminators,omitempty" yaml:"instanceExtensionManualTerminators,omitempty" toml:"instanceExtensionManualTerminators,omitempty"`
	DeviceCommandsNeedingTerminator    []string            `json:"deviceCommandsNeedingTerminator,omitempty" yaml:"deviceCommandsNeedingTerminator,omitempty" toml:"deviceCommandsNeedingTerminator,omitempty"`
	LoaderTrackedDeviceExtensions      []string            `json:"loaderTrackedDeviceExtensions,omitempty" yaml:"loaderTrackedDeviceExtensions,omitempty" toml:"loaderTrackedDeviceExtensions,omitempty"`
	GIPAAvoidExtensions                []string            `json:"gipaAvoidExtensions,omitempty" yaml:"gipaAvoidExtensions,omitempty" toml:"gipaAvoidExtensions,omitempty"`
	GIPAAvoidCommands                  []string            `json:"gipaAvoidCommands,omitempty" yaml:"gipaAvoidCommands,omitempty" toml:"gipaAvoidCommands,omitempty"`
	NullCheckedExtensions              []string            `json:"nullCheckedExtensions,omitempty" yaml:"nullCheckedExtensions,omitempty" toml:"nullCheckedExtensions,omitempty"`
	TerminatorParamTypes               []string            `json:"terminatorParamTypes,omitempty" yaml:"terminatorParamTypes,omitempty" toml:"terminatorParamTypes,omitempty"`
	InstanceTypeHandles                []string            `json:"instanceTypeHandles,omitempty" yaml:"instanceTypeHandles,omitempty" toml:"instanceTypeHandles,omitempty"`
	InstanceRootHandles                []string            `json:"instanceRootHandles,omitempty" yaml:"instanceRootHandles,omitempty" toml:"instanceRootHandles,omitempty"`
	DeviceRootHandles                  []string            `json:"deviceRootHandles,omitempty" yaml:"deviceRootHandles,omitempty" toml:"deviceRootHandles,omitempty"`
	AlwaysHandWritten                  []string            `json:"alwaysHandWritten,omitempty" yaml:"alwaysHandWritten,omitempty" toml:"alwaysHandWritten,omitempty"`
	DriverLookupSkip                   []string            `json:"driverLookupSkip,omitempty" yaml:"driverLookupSkip,omitempty" toml:"driverLookupSkip,omitempty"`
	TerminatorTableSkip                []string            `json:"terminatorTableSkip,omitempty" yaml:"terminatorTableSkip,omitempty" toml:"terminatorTableSkip,omitempty"`
	PreInstanceCommands                []string            `json:"preInstanceCommands,omitempty" yaml:"preInstanceCommands,omitempty" toml:"preInstanceCommands,omitempty"`
	TerminatorPrototypeExtensions      []string            `json:"terminatorPrototypeExtensions,omitempty" yaml:"terminatorPrototypeExtensions,omitempty" toml:"terminatorPrototypeExtensions,omitempty"`
	DeviceTableInstanceExtensions      []string            `json:"deviceTableInstanceExtensions,omitempty" yaml:"deviceTableInstanceExtensions,omitempty" toml:"deviceTableInstanceExtensions,omitempty"`
	InstanceInheritedDeviceExtensions  []string            `json:"instanceInheritedDeviceExtensions,omitempty" yaml:"instanceInheritedDeviceExtensions,omitempty" toml:"instanceInheritedDeviceExtensions,omitempty"`
	VersionPromotedDeviceExtensions    []PromotedExtension `json:"versionPromotedDeviceExtensions,omitempty" yaml:"versionPromotedDeviceExtensions,omitempty" toml:"versionPromotedDeviceExtensions,omitempty"`
	ExcludedNameFragment               *string             `json:"excludedNameFragment,omitempty" yaml:"excludedNameFragment,omitempty" toml:"excludedNameFragment,omitempty"`
	CorePrefix                         *string             `json:"corePrefix,omitempty" yaml:"corePrefix,omitempty" toml:"corePrefix,omitempty"`
	ObjectPatches                      []ObjectPatch       `json:"objectPatches,omitempty" yaml:"objectPatches,omitempty" toml:"objectPatches,omitempty"`
}

// Load overlays the rules file at path onto Default. An empty path yields
// the defaults unchanged.
func Load(path string) (*Rules, error) {
	r := Default()
	if path == "" {
		return r, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	f, err := Decode(data, registry.FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("decode rules file %s: %w", path, err)
	}
	f.Apply(r)
	return r, nil
}

func Decode(data []byte, format string) (*File, error) {
	var f File
	var err error
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, &f)
	case "toml":
		err = toml.Unmarshal(data, &f)
	case "json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported rules format '%s'", format)
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply replaces every table of r that f carries.
func (f *File) Apply(r *Rules) {
	sets := []struct {
		src []string
		dst *Set
	}{
		{f.WSIExtensions, &r.WSIExtensions},
		{f.ManualCommands, &r.ManualCommands},
		{f.InstanceExtensionOverrides, &r.InstanceExtensionOverrides},
		{f.ManualTerminators, &r.ManualTerminators},
		{f.InstanceExtensionManualTerminators, &r.InstanceExtensionManualTerminators},
		{f.DeviceCommandsNeedingTerminator, &r.DeviceCommandsNeedingTerminator},
		{f.LoaderTrackedDeviceExtensions, &r.LoaderTrackedDeviceExtensions},
		{f.GIPAAvoidExtensions, &r.GIPAAvoidExtensions},
		{f.GIPAAvoidCommands, &r.GIPAAvoidCommands},
		{f.NullCheckedExtensions, &r.NullCheckedExtensions},
		{f.TerminatorParamTypes, &r.TerminatorParamTypes},
		{f.InstanceTypeHandles, &r.InstanceTypeHandles},
		{f.InstanceRootHandles, &r.InstanceRootHandles},
		{f.DeviceRootHandles, &r.DeviceRootHandles},
		{f.AlwaysHandWritten, &r.AlwaysHandWritten},
		{f.DriverLookupSkip, &r.DriverLookupSkip},
		{f.TerminatorTableSkip, &r.TerminatorTableSkip},
		{f.PreInstanceCommands, &r.PreInstanceCommands},
		{f.TerminatorPrototypeExtensions, &r.TerminatorPrototypeExtensions},
		{f.DeviceTableInstanceExtensions, &r.DeviceTableInstanceExtensions},
		{f.InstanceInheritedDeviceExtensions, &r.InstanceInheritedDeviceExtensions},
	}
	for _, s := range sets {
		if s.src != nil {
			*s.dst = NewSet(s.src...)
		}
	}
	if f.VersionPromotedDeviceExtensions != nil {
		r.VersionPromotedDeviceExtensions = append([]PromotedExtension(nil), f.VersionPromotedDeviceExtensions...)
	}
	if f.ObjectPatches != nil {
		r.ObjectPatches = append([]ObjectPatch(nil), f.ObjectPatches...)
	}
	if f.ExcludedNameFragment != nil {
		r.ExcludedNameFragment = *f.ExcludedNameFragment
	}
	if f.CorePrefix != nil {
		r.CorePrefix = *f.CorePrefix
	}
}

// ToFile converts r back into its file form, e.g. to scaffold an overrides
// file from the defaults.
func (r *Rules) ToFile() *File {
	excluded, prefix := r.ExcludedNameFragment, r.CorePrefix
	return &File{
		WSIExtensions:                      r.WSIExtensions.Values(),
		ManualCommands:                     r.ManualCommands.Values(),
		InstanceExtensionOverrides:         r.InstanceExtensionOverrides.Values(),
		ManualTerminators:                  r.ManualTerminators.Values(),
		InstanceExtensionManualTerminators: r.InstanceExtensionManualTerminators.Values(),
		DeviceCommandsNeedingTerminator:    r.DeviceCommandsNeedingTerminator.Values(),
		LoaderTrackedDeviceExtensions:      r.LoaderTrackedDeviceExtensions.Values(),
		GIPAAvoidExtensions:                r.GIPAAvoidExtensions.Values(),
		GIPAAvoidCommands:                  r.GIPAAvoidCommands.Values(),
		NullCheckedExtensions:              r.NullCheckedExtensions.Values(),
		TerminatorParamTypes:               r.TerminatorParamTypes.Values(),
		InstanceTypeHandles:                r.InstanceTypeHandles.Values(),
		InstanceRootHandles:                r.InstanceRootHandles.Values(),
		DeviceRootHandles:                  r.DeviceRootHandles.Values(),
		AlwaysHandWritten:                  r.AlwaysHandWritten.Values(),
		DriverLookupSkip:                   r.DriverLookupSkip.Values(),
		TerminatorTableSkip:                r.TerminatorTableSkip.Values(),
		PreInstanceCommands:                r.PreInstanceCommands.Values(),
		TerminatorPrototypeExtensions:      r.TerminatorPrototypeExtensions.Values(),
		DeviceTableInstanceExtensions:      r.DeviceTableInstanceExtensions.Values(),
		InstanceInheritedDeviceExtensions:  r.InstanceInheritedDeviceExtensions.Values(),
		VersionPromotedDeviceExtensions:    append([]PromotedExtension(nil), r.VersionPromotedDeviceExtensions...),
		ExcludedNameFragment:               &excluded,
		CorePrefix:                         &prefix,
		ObjectPatches:                      append([]ObjectPatch(nil), r.ObjectPatches...),
	}
}
