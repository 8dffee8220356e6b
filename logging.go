// logging.go - Structured, module-scoped logging for the emulator
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const (
	LevelTrace slog.Level = -8
	LevelDebug            = slog.LevelDebug
	LevelInfo             = slog.LevelInfo
	LevelWarn             = slog.LevelWarn
	LevelError            = slog.LevelError
	LevelCrit  slog.Level = 12
)

// Log modules. Each component logs under exactly one of these.
const (
	modCPU     = "cpu"
	modMem     = "mem"
	modPorts   = "ports"
	modPIC     = "pic"
	modCMOS    = "cmos"
	modPIT     = "pit"
	modConsole = "console"
	modLua     = "lua"
	modSystem  = "system"
	modMonitor = "monitor"
	modGUI     = "gui"
	modAudio   = "audio"
)

var (
	rootLogger atomic.Pointer[slog.Logger]
	logLevel   = new(slog.LevelVar)

	modulesMu sync.RWMutex
	// nil means every module is enabled
	enabledModules map[string]bool
)

func init() {
	logLevel.Set(LevelWarn)
	InitLogger(os.Stderr)
}

// InitLogger installs a text handler writing to w at the current level.
func InitLogger(w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(LevelString(lvl))
				}
			}
			return a
		},
	})
	rootLogger.Store(slog.New(h))
}

// LevelString returns the lower-case name of a level, including the custom ones.
func LevelString(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelCrit:
		return "crit"
	}
	return l.String()
}

// ParseLevel accepts the names produced by LevelString.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "crit":
		return LevelCrit, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLogLevel changes the level of the root logger.
func SetLogLevel(l slog.Level) {
	logLevel.Set(l)
}

// EnableModules restricts output to a comma separated module list.
// An empty list enables every module.
func EnableModules(list string) {
	modulesMu.Lock()
	defer modulesMu.Unlock()
	list = strings.TrimSpace(list)
	if list == "" || list == "all" {
		enabledModules = nil
		return
	}
	enabledModules = make(map[string]bool)
	for _, m := range strings.Split(list, ",") {
		if m = strings.TrimSpace(m); m != "" {
			enabledModules[m] = true
		}
	}
}

func moduleEnabled(module string) bool {
	modulesMu.RLock()
	defer modulesMu.RUnlock()
	return enabledModules == nil || enabledModules[module]
}

// logEnabled lets hot paths skip building log arguments.
func logEnabled(level slog.Level, module string) bool {
	return rootLogger.Load().Enabled(context.Background(), level) && moduleEnabled(module)
}

func logWrite(level slog.Level, module, msg string, kv ...any) {
	if !logEnabled(level, module) {
		return
	}
	rootLogger.Load().Log(context.Background(), level, msg, append([]any{"module", module}, kv...)...)
}

func logTrace(module, msg string, kv ...any) { logWrite(LevelTrace, module, msg, kv...) }
func logDebug(module, msg string, kv ...any) { logWrite(LevelDebug, module, msg, kv...) }
func logInfo(module, msg string, kv ...any)  { logWrite(LevelInfo, module, msg, kv...) }
func logWarn(module, msg string, kv ...any)  { logWrite(LevelWarn, module, msg, kv...) }
func logError(module, msg string, kv ...any) { logWrite(LevelError, module, msg, kv...) }
func logCrit(module, msg string, kv ...any)  { logWrite(LevelCrit, module, msg, kv...) }
