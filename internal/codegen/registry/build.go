package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var (
	ErrNoCommands   = errors.New("registry has no commands")
	ErrNoExtensions = errors.New("registry has no features or extensions")
)

var versionDigits = regexp.MustCompile(`\d+`)

// Options controls how raw documents are normalized.
type Options struct {
	InstanceRootHandles  []string
	DeviceRootHandles    []string
	ExcludedNameFragment string
	CorePrefix           string
	Logger               *slog.Logger
}

// Registry is the immutable command/extension/handle graph. It is built once
// and only read afterwards, so it can be shared between generation targets.
type Registry struct {
	commands   map[string]*Command
	cmdOrder   []string
	extensions []*Extension
	extByName  map[string]*Extension
	owner      map[string]string
	handles    map[string]*Handle
	handleList []*Handle
}

// Build normalizes doc into a Registry. Only a document without commands or
// without features is rejected; every other anomaly is degraded locally.
func Build(doc *Document, opts Options) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if doc == nil || len(doc.Commands) == 0 {
		return nil, ErrNoCommands
	}
	if len(doc.Features) == 0 {
		return nil, ErrNoExtensions
	}

	r := &Registry{
		commands:  make(map[string]*Command, len(doc.Commands)),
		extByName: make(map[string]*Extension, len(doc.Features)),
		owner:     make(map[string]string, len(doc.Commands)),
		handles:   make(map[string]*Handle, len(doc.Handles)),
	}

	r.buildHandles(doc.Handles)

	instRoots := lo.SliceToMap(opts.InstanceRootHandles, func(s string) (string, struct{}) { return s, struct{}{} })
	devRoots := lo.SliceToMap(opts.DeviceRootHandles, func(s string) (string, struct{}) { return s, struct{}{} })

	for _, cd := range doc.Commands {
		if cd.Name == "" {
			logger.Warn("Skipping command without a name")
			continue
		}
		if isExcluded(cd.Name, opts.ExcludedNameFragment) {
			logger.Debug("Skipping excluded platform command", "command", cd.Name)
			continue
		}
		if _, dup := r.commands[cd.Name]; dup {
			logger.Warn("Duplicate command definition, keeping the first one", "command", cd.Name)
			continue
		}
		cmd := newCommand(cd)
		cmd.Class = classOf(cmd.HandleType, instRoots, devRoots)
		r.commands[cmd.Name] = cmd
		r.cmdOrder = append(r.cmdOrder, cmd.Name)
	}
	if len(r.commands) == 0 {
		return nil, ErrNoCommands
	}

	for _, name := range r.cmdOrder {
		cmd := r.commands[name]
		if cmd.Alias == "" {
			continue
		}
		if _, ok := r.commands[cmd.Alias]; !ok {
			logger.Debug("Alias target not in registry, treating as no alias", "command", cmd.Name, "alias", cmd.Alias)
			cmd.Alias = ""
		}
	}

	for _, fd := range doc.Features {
		if fd.Name == "" {
			logger.Warn("Skipping feature without a name")
			continue
		}
		if _, dup := r.extByName[fd.Name]; dup {
			logger.Warn("Duplicate feature definition, keeping the first one", "feature", fd.Name)
			continue
		}
		ext := r.newExtension(fd, opts.CorePrefix, logger)
		r.extensions = append(r.extensions, ext)
		r.extByName[ext.Name] = ext
	}

	return r, nil
}

func (r *Registry) buildHandles(docs []HandleDoc) {
	for _, hd := range docs {
		if hd.Name == "" {
			continue
		}
		if _, dup := r.handles[hd.Name]; dup {
			continue
		}
		h := &Handle{
			Name:         hd.Name,
			Alias:        hd.Alias,
			Dispatchable: hd.Dispatchable,
			Parents:      append([]string(nil), hd.Parents...),
		}
		r.handles[h.Name] = h
		r.handleList = append(r.handleList, h)
	}
	for _, h := range r.handleList {
		for _, p := range h.Parents {
			if parent, ok := r.handles[p]; ok {
				parent.Children = append(parent.Children, h.Name)
			}
		}
	}
}

func (r *Registry) newExtension(fd FeatureDoc, corePrefix string, logger *slog.Logger) *Extension {
	ext := &Extension{
		Name:    fd.Name,
		Type:    ExtensionType(fd.Type),
		Define:  fd.Define,
		Protect: fd.Protect,
	}
	if corePrefix != "" && strings.HasPrefix(fd.Name, corePrefix) {
		ext.IsCore = true
		ext.Type = ExtensionCore
		nums := versionDigits.FindAllString(fd.Name, -1)
		if len(nums) >= 1 {
			ext.Major, _ = strconv.Atoi(nums[0])
		}
		if len(nums) >= 2 {
			ext.Minor, _ = strconv.Atoi(nums[1])
		}
	}

	requires := splitList(fd.Requires)
	for _, req := range fd.Require {
		for _, name := range req.Commands {
			if _, ok := r.commands[name]; !ok {
				continue
			}
			if _, claimed := r.owner[name]; claimed {
				continue
			}
			r.owner[name] = ext.Name
			ext.Commands = append(ext.Commands, name)
			requires = append(requires, splitList(req.Extension)...)
		}
	}
	ext.Requires = lo.Uniq(requires)

	logger.Debug("Registered feature", "name", ext.Name, "type", string(ext.Type), "commands", len(ext.Commands))
	return ext
}

func newCommand(cd CommandDoc) *Command {
	cmd := &Command{
		Name:    cd.Name,
		Alias:   cd.Alias,
		CDecl:   cd.CDecl,
		Protect: cd.Protect,
	}
	if cd.ReturnType != "void" {
		cmd.ReturnType = cd.ReturnType
	}
	for _, pd := range cd.Params {
		p := Param{
			Type:      pd.Type,
			Name:      pd.Name,
			CDecl:     pd.CDecl,
			Const:     pd.Const,
			Pointer:   pd.Pointer,
			ArrayDims: pd.ArrayDims,
			Len:       strings.ReplaceAll(pd.Len, "::", "->"),
		}
		if p.CDecl == "" {
			p.CDecl = paramDecl(p)
		} else if !p.Const && strings.Contains(p.CDecl, "const") {
			p.Const = true
		}
		cmd.Params = append(cmd.Params, p)
	}
	if len(cmd.Params) > 0 {
		cmd.HandleType = cmd.Params[0].Type
	}
	if cmd.CDecl == "" {
		cmd.CDecl = commandDecl(cmd)
	}
	return cmd
}

func classOf(handleType string, instRoots, devRoots map[string]struct{}) DispatchClass {
	if handleType == "" {
		return DispatchGlobal
	}
	if _, ok := instRoots[handleType]; ok {
		return DispatchInstance
	}
	if _, ok := devRoots[handleType]; ok {
		return DispatchDevice
	}
	return DispatchGlobal
}

func paramDecl(p Param) string {
	var b strings.Builder
	if p.Const {
		b.WriteString("const ")
	}
	b.WriteString(p.Type)
	if p.Pointer {
		b.WriteString("*")
	}
	b.WriteString(" ")
	b.WriteString(p.Name)
	return b.String()
}

// commandDecl rebuilds a prototype when the document carries none.
func commandDecl(cmd *Command) string {
	ret := cmd.ReturnType
	if ret == "" {
		ret = "void"
	}
	if len(cmd.Params) == 0 {
		return fmt.Sprintf("VKAPI_ATTR %s VKAPI_CALL %s(void);", ret, cmd.Name)
	}
	params := lo.Map(cmd.Params, func(p Param, _ int) string { return "    " + p.CDecl })
	return fmt.Sprintf("VKAPI_ATTR %s VKAPI_CALL %s(\n%s);", ret, cmd.Name, strings.Join(params, ",\n"))
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func isExcluded(name, fragment string) bool {
	return fragment != "" && strings.Contains(strings.ToLower(name), fragment)
}

func (r *Registry) Command(name string) (*Command, bool) {
	c, ok := r.commands[name]
	return c, ok
}

// Commands returns every command in declaration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.cmdOrder))
	for _, name := range r.cmdOrder {
		out = append(out, r.commands[name])
	}
	return out
}

// Extensions returns core versions and extensions in declaration order.
func (r *Registry) Extensions() []*Extension {
	return append([]*Extension(nil), r.extensions...)
}

func (r *Registry) Extension(name string) (*Extension, bool) {
	e, ok := r.extByName[name]
	return e, ok
}

// Owner returns the feature that first claimed the command.
func (r *Registry) Owner(command string) (*Extension, bool) {
	name, ok := r.owner[command]
	if !ok {
		return nil, false
	}
	return r.Extension(name)
}

// Handle looks a handle up by name or alias. Unknown names are not handles.
func (r *Registry) Handle(name string) (*Handle, bool) {
	if h, ok := r.handles[name]; ok {
		return h, true
	}
	for _, h := range r.handleList {
		if h.Alias == name {
			return h, true
		}
	}
	return nil, false
}

func (r *Registry) Handles() []*Handle {
	return append([]*Handle(nil), r.handleList...)
}

func (r *Registry) IsDispatchable(typeName string) bool {
	h, ok := r.Handle(typeName)
	return ok && h.Dispatchable
}
