package script

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	terrors "github.com/web-padawan/demosnippet/internal/errors"
	"github.com/web-padawan/demosnippet/internal/fetch"
	"github.com/web-padawan/demosnippet/internal/logging"
	"github.com/web-padawan/demosnippet/internal/preview"
)

const (
	containerTypeName = "demosnippet.container"
	elementTypeName   = "demosnippet.element"
)

// LuaImporter loads companion scripts written in Lua. The chunk must return
// a function; that function is the entry point and receives the output
// container.
type LuaImporter struct {
	fetcher fetch.Fetcher
	logger  logging.Logger
}

// NewLuaImporter creates an importer that reads scripts through fetcher.
func NewLuaImporter(fetcher fetch.Fetcher, logger logging.Logger) *LuaImporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LuaImporter{
		fetcher: fetcher,
		logger:  logger.WithComponent("script"),
	}
}

// Import fetches and compiles the script. Running it is deferred to the
// returned entry point.
func (li *LuaImporter) Import(ctx context.Context, p string) (EntryPoint, error) {
	resp, err := li.fetcher.Fetch(ctx, p)
	if err != nil {
		return nil, terrors.NewScriptError(terrors.ErrCodeScriptImport, "could not fetch script", err).WithPath(p)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, terrors.NewScriptError(terrors.ErrCodeScriptImport, "script not found", nil).WithPath(p)
	}

	proto, err := compile(resp.Text(), p)
	if err != nil {
		return nil, terrors.NewScriptError(terrors.ErrCodeScriptImport, "could not compile script", err).WithPath(p)
	}

	li.logger.Debug(ctx, "Script imported", "path", p)

	return func(ctx context.Context, output *preview.Container) error {
		if err := li.run(ctx, proto, p, output); err != nil {
			return terrors.NewScriptError(terrors.ErrCodeScriptRun, "script failed", err).WithPath(p)
		}
		return nil
	}, nil
}

func compile(source, name string) (*lua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	return proto, nil
}

func (li *LuaImporter) run(ctx context.Context, proto *lua.FunctionProto, name string, output *preview.Container) error {
	L := li.newSandboxedVM(ctx, name)
	defer L.Close()

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	entry, ok := L.Get(-1).(*lua.LFunction)
	L.Pop(1)
	if !ok {
		return fmt.Errorf("script must return a function")
	}

	return L.CallByParam(lua.P{
		Fn:      entry,
		NRet:    0,
		Protect: true,
	}, newContainerValue(L, output))
}

// newSandboxedVM creates a VM with only the base, table, string and math
// libraries. print is routed to the logger.
func (li *LuaImporter) newSandboxedVM(ctx context.Context, name string) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       128,
		RegistrySize:        1024,
		MinimizeStackMemory: true,
	})
	L.SetContext(ctx)

	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, global := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(global, lua.LNil)
	}

	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, L.GetTop())
		for i := range parts {
			parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
		}
		li.logger.Info(ctx, "Script output", "script", name, "message", strings.Join(parts, "\t"))
		return 0
	}))

	registerTypes(L)
	return L
}

func registerTypes(L *lua.LState) {
	cmt := L.NewTypeMetatable(containerTypeName)
	L.SetField(cmt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"query":     containerQuery,
		"query_all": containerQueryAll,
		"html":      containerHTML,
	}))

	emt := L.NewTypeMetatable(elementTypeName)
	L.SetField(emt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"tag":              elementTag,
		"get_attribute":    elementGetAttribute,
		"has_attribute":    elementHasAttribute,
		"set_attribute":    elementSetAttribute,
		"remove_attribute": elementRemoveAttribute,
		"toggle_attribute": elementToggleAttribute,
		"text":             elementText,
		"set_text":         elementSetText,
	}))
}

func newContainerValue(L *lua.LState, c *preview.Container) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = c
	L.SetMetatable(ud, L.GetTypeMetatable(containerTypeName))
	return ud
}

func newElementValue(L *lua.LState, e *preview.Element) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = e
	L.SetMetatable(ud, L.GetTypeMetatable(elementTypeName))
	return ud
}

func checkContainer(L *lua.LState) *preview.Container {
	ud := L.CheckUserData(1)
	if c, ok := ud.Value.(*preview.Container); ok {
		return c
	}
	L.ArgError(1, "container expected")
	return nil
}

func checkElement(L *lua.LState) *preview.Element {
	ud := L.CheckUserData(1)
	if e, ok := ud.Value.(*preview.Element); ok {
		return e
	}
	L.ArgError(1, "element expected")
	return nil
}

func containerQuery(L *lua.LState) int {
	c := checkContainer(L)
	el, err := c.Query(L.CheckString(2))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if el == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(newElementValue(L, el))
	return 1
}

func containerQueryAll(L *lua.LState) int {
	c := checkContainer(L)
	elements, err := c.QueryAll(L.CheckString(2))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	tbl := L.CreateTable(len(elements), 0)
	for _, el := range elements {
		tbl.Append(newElementValue(L, el))
	}
	L.Push(tbl)
	return 1
}

func containerHTML(L *lua.LState) int {
	L.Push(lua.LString(checkContainer(L).HTML()))
	return 1
}

func elementTag(L *lua.LState) int {
	L.Push(lua.LString(checkElement(L).Tag()))
	return 1
}

func elementGetAttribute(L *lua.LState) int {
	value, ok := checkElement(L).Attribute(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(value))
	return 1
}

func elementHasAttribute(L *lua.LState) int {
	L.Push(lua.LBool(checkElement(L).HasAttribute(L.CheckString(2))))
	return 1
}

func elementSetAttribute(L *lua.LState) int {
	checkElement(L).SetAttribute(L.CheckString(2), L.OptString(3, ""))
	return 0
}

func elementRemoveAttribute(L *lua.LState) int {
	checkElement(L).RemoveAttribute(L.CheckString(2))
	return 0
}

func elementToggleAttribute(L *lua.LState) int {
	e := checkElement(L)
	name := L.CheckString(2)
	if L.GetTop() >= 3 {
		if L.ToBool(3) {
			e.SetAttribute(name, "")
		} else {
			e.RemoveAttribute(name)
		}
		L.Push(lua.LBool(L.ToBool(3)))
		return 1
	}
	L.Push(lua.LBool(e.ToggleAttribute(name)))
	return 1
}

func elementText(L *lua.LState) int {
	L.Push(lua.LString(checkElement(L).Text()))
	return 1
}

func elementSetText(L *lua.LState) int {
	checkElement(L).SetText(L.CheckString(2))
	return 0
}
