// Package script is the Lua escape hatch for abilities.
//
// Every *.lua file in the script directory returns a table of hooks:
//
//	-- combo.lua
//	return {
//	  check = function(ctx) return ctx:var("combo") >= 3 end,
//	  run   = function(ctx) ctx:set_var("combo", 0) end,
//	}
//
// The file name without extension is the script name. Hooks receive the cast
// context as userdata with methods var, set_var, caster, stat and targets.
package script

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Shopify/go-lua"
)

const (
	scriptsGlobal   = "__scripts"
	contextTypeName = "skillflow.Context"
)

// Context is what hooks can see of a cast. *skill.Context implements it.
type Context interface {
	CasterID() string
	CasterStat(id string) float64
	TargetIDs() []string
	Var(name string) (any, bool)
	SetVar(name string, v any)
}

// Engine owns one Lua state. Calls are serialised.
type Engine struct {
	mu    sync.Mutex
	state *lua.State
	names map[string]struct{}

	calls atomic.Uint64
}

// NewEngine creates an engine with the standard libraries and the context type.
func NewEngine() *Engine {
	l := lua.NewState()
	lua.OpenLibraries(l)

	l.NewTable()
	l.SetGlobal(scriptsGlobal)

	lua.NewMetaTable(l, contextTypeName)
	l.NewTable()
	lua.SetFunctions(l, contextMethods, 0)
	l.SetField(-2, "__index")
	l.Pop(1)

	l.PushGoFunction(luaLog)
	l.SetGlobal("log")

	return &Engine{state: l, names: make(map[string]struct{}, 16)}
}

// LoadDir loads every *.lua file of dir. A missing dir is not an error.
func (e *Engine) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading script dir %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), ".lua")
		if err := e.load(name, func(l *lua.State) error { return lua.LoadFile(l, path, "") }); err != nil {
			return loaded, fmt.Errorf("load %s: %w", path, err)
		}
		slog.Debug("loaded lua script", "file", path, "name", name)
		loaded++
	}
	return loaded, nil
}

// LoadString loads a script from source under name.
func (e *Engine) LoadString(name, src string) error {
	return e.load(name, func(l *lua.State) error { return lua.LoadString(l, src) })
}

func (e *Engine) load(name string, compile func(*lua.State) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	if err := compile(l); err != nil {
		return err
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return err
	}
	if l.TypeOf(-1) != lua.TypeTable {
		return fmt.Errorf("script %s must return a table of hooks, got %s", name, lua.TypeNameOf(l, -1))
	}

	l.Global(scriptsGlobal)
	l.PushValue(-2)
	l.SetField(-2, name)
	e.names[name] = struct{}{}
	return nil
}

// Has reports whether script name defines hook.
func (e *Engine) Has(name, hook string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	top := l.Top()
	defer l.SetTop(top)
	return e.pushHook(name, hook)
}

// Names returns loaded script names, sorted.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.names))
	for n := range e.names {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Calls returns how many hooks ran.
func (e *Engine) Calls() uint64 {
	return e.calls.Load()
}

// Call runs hook of script name with ctx and reports the hook's truthiness.
// ctx must implement Context.
func (e *Engine) Call(name, hook string, ctx any) (bool, error) {
	sc, ok := ctx.(Context)
	if !ok {
		return false, fmt.Errorf("script %s.%s: context %T is not scriptable", name, hook, ctx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	l := e.state
	top := l.Top()
	defer l.SetTop(top)

	if !e.pushHook(name, hook) {
		return false, fmt.Errorf("script %s has no hook %q", name, hook)
	}
	l.PushUserData(sc)
	lua.SetMetaTableNamed(l, contextTypeName)

	e.calls.Add(1)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return false, fmt.Errorf("script %s.%s: %w", name, hook, err)
	}
	return l.ToBoolean(-1), nil
}

// pushHook pushes the hook function on success. Must hold mu.
func (e *Engine) pushHook(name, hook string) bool {
	l := e.state
	l.Global(scriptsGlobal)
	l.Field(-1, name)
	if l.TypeOf(-1) != lua.TypeTable {
		return false
	}
	l.Field(-1, hook)
	return l.IsFunction(-1)
}

var contextMethods = []lua.RegistryFunction{
	{Name: "var", Function: ctxVar},
	{Name: "set_var", Function: ctxSetVar},
	{Name: "caster", Function: ctxCaster},
	{Name: "stat", Function: ctxStat},
	{Name: "targets", Function: ctxTargets},
}

func checkContext(l *lua.State) Context {
	ud := lua.CheckUserData(l, 1, contextTypeName)
	c, ok := ud.(Context)
	if !ok {
		lua.Errorf(l, "bad context userdata")
	}
	return c
}

// ctx:var(name) -> value or nil
func ctxVar(l *lua.State) int {
	c := checkContext(l)
	v, ok := c.Var(lua.CheckString(l, 2))
	if !ok {
		l.PushNil()
		return 1
	}
	pushValue(l, v)
	return 1
}

// ctx:set_var(name, value); nil deletes
func ctxSetVar(l *lua.State) int {
	c := checkContext(l)
	name := lua.CheckString(l, 2)
	switch l.TypeOf(3) {
	case lua.TypeNumber:
		n, _ := l.ToNumber(3)
		c.SetVar(name, n)
	case lua.TypeString:
		s, _ := l.ToString(3)
		c.SetVar(name, s)
	case lua.TypeBoolean:
		c.SetVar(name, l.ToBoolean(3))
	case lua.TypeNil, lua.TypeNone:
		c.SetVar(name, nil)
	default:
		lua.ArgumentError(l, 3, "number, string, boolean or nil expected")
	}
	return 0
}

// ctx:caster() -> id
func ctxCaster(l *lua.State) int {
	l.PushString(checkContext(l).CasterID())
	return 1
}

// ctx:stat(id) -> caster snapshot value
func ctxStat(l *lua.State) int {
	c := checkContext(l)
	l.PushNumber(c.CasterStat(lua.CheckString(l, 2)))
	return 1
}

// ctx:targets() -> array of subject ids
func ctxTargets(l *lua.State) int {
	ids := checkContext(l).TargetIDs()
	l.CreateTable(len(ids), 0)
	for i, id := range ids {
		l.PushString(id)
		l.RawSetInt(-2, i+1)
	}
	return 1
}

func luaLog(l *lua.State) int {
	slog.Info("script", "msg", lua.CheckString(l, 1))
	return 0
}

func pushValue(l *lua.State, v any) {
	switch x := v.(type) {
	case float64:
		l.PushNumber(x)
	case int:
		l.PushInteger(x)
	case int64:
		l.PushNumber(float64(x))
	case bool:
		l.PushBoolean(x)
	case string:
		l.PushString(x)
	default:
		l.PushString(fmt.Sprint(x))
	}
}
