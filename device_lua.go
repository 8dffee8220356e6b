// device_lua.go - Port devices implemented as Lua scripts
//
// A script claims ports with a global table and answers them with callbacks:
//
//	ports = { 0x300, 0x301 }
//	function on_init() end
//	function on_in(port, width) return 0xFF end
//	function on_out(port, width, value) end
//	function on_step() end
//
// on_init and on_step are optional. Scripts may call raise_irq(line) and
// log(msg, ...).
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	lua "github.com/yuin/gopher-lua"
)

var ErrLuaScript = errors.New("lua device script error")

// LuaDevice runs one script in its own interpreter. The interpreter is only
// touched under the device handle lock.
type LuaDevice struct {
	name   string
	source string
	path   string
	L      *lua.LState
	ports  map[uint16]bool
	sys    *System

	onIn, onOut, onStep, onInit *lua.LFunction
	failed                      bool
}

// NewLuaDevice builds a device from script source.
func NewLuaDevice(name, source string) *LuaDevice {
	return &LuaDevice{name: name, source: source}
}

// LoadLuaDevice builds a device from a script file.
func LoadLuaDevice(name, path string) (*LuaDevice, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua device %s: %w", name, err)
	}
	d := NewLuaDevice(name, string(src))
	d.path = path
	return d, nil
}

func (d *LuaDevice) Name() string { return d.name }

func (d *LuaDevice) Init(sys *System) error {
	d.sys = sys
	if d.L != nil {
		d.L.Close()
	}
	d.L = lua.NewState(lua.Options{SkipOpenLibs: false})
	d.failed = false
	d.L.SetGlobal("raise_irq", d.L.NewFunction(d.luaRaiseIRQ))
	d.L.SetGlobal("log", d.L.NewFunction(d.luaLog))

	if err := d.L.DoString(d.source); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLuaScript, d.name, err)
	}

	ports, ok := d.L.GetGlobal("ports").(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: %s: no ports table", ErrLuaScript, d.name)
	}
	d.ports = make(map[uint16]bool)
	var bad error
	ports.ForEach(func(_, v lua.LValue) {
		n, ok := v.(lua.LNumber)
		if !ok || n < 0 || n > 0xFFFF {
			bad = fmt.Errorf("%w: %s: bad port %v", ErrLuaScript, d.name, v)
			return
		}
		d.ports[uint16(n)] = true
	})
	if bad != nil {
		return bad
	}

	d.onIn = d.function("on_in")
	d.onOut = d.function("on_out")
	d.onStep = d.function("on_step")
	d.onInit = d.function("on_init")
	if d.onIn == nil && d.onOut == nil {
		return fmt.Errorf("%w: %s: neither on_in nor on_out defined", ErrLuaScript, d.name)
	}
	if d.onInit != nil {
		if err := d.call(d.onInit, 0); err != nil {
			return err
		}
	}
	logInfo(modLua, "lua device loaded", "name", d.name, "ports", len(d.ports))
	return nil
}

func (d *LuaDevice) function(name string) *lua.LFunction {
	fn, _ := d.L.GetGlobal(name).(*lua.LFunction)
	return fn
}

func (d *LuaDevice) call(fn *lua.LFunction, nret int, args ...lua.LValue) error {
	err := d.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLuaScript, d.name, err)
	}
	return nil
}

func (d *LuaDevice) Step() {
	if d.onStep == nil || d.failed {
		return
	}
	if err := d.call(d.onStep, 0); err != nil {
		// A broken on_step would otherwise log every iteration.
		d.failed = true
		logError(modLua, "on_step failed, device stepping disabled", "name", d.name, "err", err)
	}
}

func (d *LuaDevice) HandlePort(req PortRequest) (uint16, bool) {
	if !d.ports[req.Port] {
		return 0, false
	}
	port := lua.LNumber(req.Port)
	width := lua.LNumber(req.Width)
	if req.Dir == PortOut {
		if d.onOut == nil {
			return 0, true
		}
		if err := d.call(d.onOut, 0, port, width, lua.LNumber(req.Value)); err != nil {
			logError(modLua, "on_out failed", "name", d.name, "port", req.Port, "err", err)
		}
		return 0, true
	}
	if d.onIn == nil {
		return 0, true
	}
	if err := d.call(d.onIn, 1, port, width); err != nil {
		logError(modLua, "on_in failed", "name", d.name, "port", req.Port, "err", err)
		return 0, true
	}
	ret := d.L.Get(-1)
	d.L.Pop(1)
	n, ok := ret.(lua.LNumber)
	if !ok {
		return 0, true
	}
	return uint16(int64(n)) & req.Width.mask(), true
}

// Ports returns the ports the script claimed, in ascending order.
func (d *LuaDevice) Ports() []uint16 {
	out := make([]uint16, 0, len(d.ports))
	for p := range d.ports {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (d *LuaDevice) Close() {
	if d.L != nil {
		d.L.Close()
		d.L = nil
	}
}

func (d *LuaDevice) luaRaiseIRQ(L *lua.LState) int {
	line := L.CheckInt(1)
	if d.sys != nil {
		d.sys.RaiseIRQ(line)
	}
	return 0
}

func (d *LuaDevice) luaLog(L *lua.LState) int {
	msg := L.CheckString(1)
	kv := make([]any, 0, L.GetTop())
	for i := 2; i <= L.GetTop(); i++ {
		kv = append(kv, L.Get(i).String())
	}
	if len(kv)%2 != 0 {
		kv = append(kv, "")
	}
	logInfo(modLua, msg, append([]any{"device", d.name}, kv...)...)
	return 0
}
