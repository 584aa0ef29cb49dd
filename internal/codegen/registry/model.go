package registry

import "strings"

// DispatchClass tells which dispatchable object roots a command. It is
// resolved once from the first parameter when the registry is built.
type DispatchClass int

const (
	DispatchGlobal DispatchClass = iota
	DispatchInstance
	DispatchDevice
)

func (c DispatchClass) String() string {
	switch c {
	case DispatchInstance:
		return "instance"
	case DispatchDevice:
		return "device"
	default:
		return "global"
	}
}

// MarshalText lets the class appear by name in YAML/JSON/TOML dumps.
func (c DispatchClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

type ExtensionType string

const (
	ExtensionCore     ExtensionType = ""
	ExtensionInstance ExtensionType = "instance"
	ExtensionDevice   ExtensionType = "device"
)

type Param struct {
	Type      string
	Name      string
	CDecl     string
	Const     bool
	Pointer   bool
	ArrayDims int
	// Len is the registry length expression for array parameters, with
	// member scope already converted to C pointer access ("a::b" -> "a->b").
	Len string
}

type Command struct {
	Name       string
	Alias      string
	ReturnType string // empty for void
	CDecl      string
	Protect    string
	Params     []Param
	HandleType string
	Class      DispatchClass
}

// BaseName is the command name without its "vk" prefix, which is how the
// dispatch table slots are named.
func (c *Command) BaseName() string {
	return strings.TrimPrefix(c.Name, "vk")
}

func (c *Command) HasReturn() bool {
	return c.ReturnType != ""
}

func (c *Command) ReturnsResult() bool {
	return c.ReturnType == "VkResult"
}

func (c *Command) LastParam() (Param, bool) {
	if len(c.Params) == 0 {
		return Param{}, false
	}
	return c.Params[len(c.Params)-1], true
}

// HasParamType reports whether any parameter type satisfies has.
func (c *Command) HasParamType(has func(string) bool) bool {
	for _, p := range c.Params {
		if has(p.Type) {
			return true
		}
	}
	return false
}

type Extension struct {
	Name     string
	Type     ExtensionType
	Define   string
	Protect  string
	Requires []string
	// Commands lists the commands this feature introduces, in declaration
	// order. A command already claimed by an earlier feature is not listed.
	Commands []string
	IsCore   bool
	Major    int
	Minor    int
}

// VarName is the extension name without the "VK_" prefix in lower case, as
// used for the enable bit-fields of the loader structs.
func (e *Extension) VarName() string {
	return ExtensionVarName(e.Name)
}

func ExtensionVarName(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, "VK_"))
}

type Handle struct {
	Name         string
	Alias        string
	Dispatchable bool
	Parents      []string
	Children     []string
}
