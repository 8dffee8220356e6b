//go:build !headless

// video_backend_ebiten.go - Ebiten status window for IntuitionXT

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▒██   ██▒▄▄▄█████▓
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▒▒ █ █ ▒░▓  ██▒ ▓▒
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ░░  █   ░▒ ▓██░ ▒░
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒    ░ █ █ ▒ ░ ▓██▓ ░
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ▒██▒ ▒██▒  ▒██▒ ░
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ▒▒ ░ ░▓ ░  ▒ ░░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░   ░░   ░▒ ░    ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░     ░    ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░     ░    ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionXT
License: GPLv3 or later
*/

package main

import (
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

func init() {
	compiledFeatures = append(compiledFeatures, "gui:ebiten")
}

const (
	statusWidth      = 640
	statusHeight     = 480
	statusLineHeight = 14
)

// StatusWindow shows registers, RTC, PIC and the debug console, and routes
// typed keys to the console device.
type StatusWindow struct {
	machine *Machine
	runner  *CPUX86Runner

	mu            sync.RWMutex
	running       bool
	done          chan struct{}
	showStatusBar bool
	report        StatusReport
	lastPoll      time.Time
	notice        string
	noticeUntil   time.Time
	frameCount    uint64

	clipboardOnce sync.Once
	clipboardOK   bool

	hardResetHandler func()
	resetInProgress  atomic.Bool
}

func NewStatusWindow(m *Machine, runner *CPUX86Runner) *StatusWindow {
	return &StatusWindow{
		machine:       m,
		runner:        runner,
		done:          make(chan struct{}),
		showStatusBar: true,
	}
}

// Start opens the window on its own goroutine.
func (w *StatusWindow) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	ebiten.SetWindowSize(statusWidth, statusHeight)
	ebiten.SetWindowTitle("IntuitionXT (c) 2024 - 2026 Zayn Otley")
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)

	go func() {
		defer close(w.done)
		if err := ebiten.RunGame(w); err != nil {
			logError(modGUI, "ebiten error", "err", err)
		}
	}()
	logInfo(modGUI, "status window opened")
	return nil
}

// Done is closed when the window has been closed.
func (w *StatusWindow) Done() <-chan struct{} {
	return w.done
}

func (w *StatusWindow) Close() error {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	return nil
}

func (w *StatusWindow) SetHardResetHandler(fn func()) {
	w.mu.Lock()
	w.hardResetHandler = fn
	w.mu.Unlock()
}

func (w *StatusWindow) Update() error {
	if ebiten.IsWindowBeingClosed() {
		w.runner.Stop()
		return ebiten.Termination
	}
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()
	if !running {
		return ebiten.Termination
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyF10) {
		if w.resetInProgress.CompareAndSwap(false, true) {
			w.mu.RLock()
			handler := w.hardResetHandler
			w.mu.RUnlock()
			if handler != nil {
				go func() {
					defer w.resetInProgress.Store(false)
					handler()
				}()
			} else {
				w.resetInProgress.Store(false)
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		w.mu.Lock()
		w.showStatusBar = !w.showStatusBar
		w.mu.Unlock()
	}

	// The machine holds its locks per instruction; 20 polls a second is plenty.
	if time.Since(w.lastPoll) >= 50*time.Millisecond {
		r := CollectStatus(w.machine, w.runner)
		w.mu.Lock()
		w.report = r
		w.mu.Unlock()
		w.lastPoll = time.Now()
	}

	w.handleKeyboardInput()
	return nil
}

func (w *StatusWindow) emitByte(b byte) {
	if w.machine.Console != nil {
		w.machine.Console.RouteHostKey(b)
	}
}

func (w *StatusWindow) emitSeq(seq []byte) {
	for _, b := range seq {
		w.emitByte(b)
	}
}

func (w *StatusWindow) handleKeyboardInput() {
	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyV) {
		w.handleClipboardPaste()
	}
	if ctrl && shift && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		w.handleClipboardCopy()
	}
	if ctrl {
		return
	}

	for _, r := range ebiten.AppendInputChars(nil) {
		if b, ok := runeToInputByte(r); ok {
			w.emitByte(b)
		}
	}

	specialKeys := []ebiten.Key{
		ebiten.KeyEnter,
		ebiten.KeyNumpadEnter,
		ebiten.KeyBackspace,
		ebiten.KeyTab,
		ebiten.KeyEscape,
		ebiten.KeyArrowUp,
		ebiten.KeyArrowDown,
		ebiten.KeyArrowRight,
		ebiten.KeyArrowLeft,
		ebiten.KeyHome,
		ebiten.KeyEnd,
		ebiten.KeyDelete,
	}
	for _, key := range specialKeys {
		if inpututil.IsKeyJustPressed(key) {
			if seq, ok := translateSpecialKey(key); ok {
				w.emitSeq(seq)
			}
		}
	}
}

func runeToInputByte(r rune) (byte, bool) {
	if r <= 0 || r > 0xFF {
		return 0, false
	}
	return byte(r), true
}

func translateSpecialKey(key ebiten.Key) ([]byte, bool) {
	switch key {
	case ebiten.KeyEnter, ebiten.KeyNumpadEnter:
		return []byte{'\n'}, true
	case ebiten.KeyBackspace:
		return []byte{'\b'}, true
	case ebiten.KeyTab:
		return []byte{'\t'}, true
	case ebiten.KeyEscape:
		return []byte{0x1B}, true
	case ebiten.KeyArrowUp:
		return []byte{0x1B, '[', 'A'}, true
	case ebiten.KeyArrowDown:
		return []byte{0x1B, '[', 'B'}, true
	case ebiten.KeyArrowRight:
		return []byte{0x1B, '[', 'C'}, true
	case ebiten.KeyArrowLeft:
		return []byte{0x1B, '[', 'D'}, true
	case ebiten.KeyHome:
		return []byte{0x1B, '[', 'H'}, true
	case ebiten.KeyEnd:
		return []byte{0x1B, '[', 'F'}, true
	case ebiten.KeyDelete:
		return []byte{0x1B, '[', '3', '~'}, true
	default:
		return nil, false
	}
}

func (w *StatusWindow) clipboardReady() bool {
	w.clipboardOnce.Do(func() {
		w.clipboardOK = clipboard.Init() == nil
		if !w.clipboardOK {
			logWarn(modGUI, "clipboard unavailable")
		}
	})
	return w.clipboardOK
}

func (w *StatusWindow) handleClipboardPaste() {
	if !w.clipboardReady() {
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		return
	}
	data = capPasteText(normalizePasteText(data), pasteLimit)
	w.emitSeq(data)
}

// handleClipboardCopy puts the register dump on the clipboard.
func (w *StatusWindow) handleClipboardCopy() {
	if !w.clipboardReady() {
		return
	}
	w.mu.Lock()
	dump := w.report.RegisterDump()
	w.notice = "registers copied"
	w.noticeUntil = time.Now().Add(2 * time.Second)
	w.mu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(dump))
}

func (w *StatusWindow) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{16, 16, 32, 255})

	w.mu.RLock()
	lines := w.report.Lines()
	report := w.report
	showStatusBar := w.showStatusBar
	notice := ""
	if time.Now().Before(w.noticeUntil) {
		notice = w.notice
	}
	w.mu.RUnlock()

	face := basicfont.Face7x13
	fg := color.RGBA{220, 220, 220, 255}
	y := statusLineHeight
	for _, line := range lines {
		if y > statusHeight-52 {
			break
		}
		text.Draw(screen, line, face, 6, y, fg)
		y += statusLineHeight
	}
	if showStatusBar {
		w.drawStatusBar(screen, report, notice)
	}
	w.frameCount++
}

func (w *StatusWindow) Layout(_, _ int) (int, int) {
	return statusWidth, statusHeight
}

type statusToken struct {
	name    string
	enabled bool
}

func drawStatusLine(screen *ebiten.Image, x, baselineY int, label string, tokens []statusToken) {
	face := basicfont.Face7x13
	labelColor := color.RGBA{190, 190, 190, 255}
	offColor := color.RGBA{120, 120, 120, 255}
	onColor := color.RGBA{0, 220, 90, 255}

	text.Draw(screen, label, face, x, baselineY, labelColor)
	cursorX := x + text.BoundString(face, label).Dx() + 6

	for _, token := range tokens {
		c := offColor
		if token.enabled {
			c = onColor
		}
		text.Draw(screen, token.name, face, cursorX, baselineY, c)
		cursorX += text.BoundString(face, token.name).Dx() + 8
	}
}

func (w *StatusWindow) drawStatusBar(screen *ebiten.Image, r StatusReport, notice string) {
	barHeight := 30
	y := statusHeight - barHeight
	ebitenutil.DrawRect(screen, 0, float64(y), statusWidth, float64(barHeight), color.RGBA{0, 0, 0, 180})

	drawStatusLine(screen, 6, y+13, "CPU   ", []statusToken{
		{name: "RUN", enabled: r.Running},
		{name: "|", enabled: false},
		{name: "HLT", enabled: r.CPU.Halted},
		{name: "|", enabled: false},
		{name: "IF", enabled: r.CPU.Flags.Has(x86FlagIF)},
	})
	drawStatusLine(screen, 6, y+26, "DEVICE", []statusToken{
		{name: "RTC", enabled: r.HasRTC},
		{name: "|", enabled: false},
		{name: "PIC", enabled: r.HasPIC},
		{name: "|", enabled: false},
		{name: "SPK", enabled: r.ToneOn},
		{name: "|", enabled: false},
		{name: "CON", enabled: r.Console != nil},
		{name: "|", enabled: false},
		{name: fmt.Sprintf("LUA:%d", r.Lua), enabled: r.Lua > 0},
	})

	legend := "F10 Reset  F12 Bar  Ctrl+Shift+C Copy"
	if notice != "" {
		legend = notice
	}
	legendX := max(statusWidth-text.BoundString(basicfont.Face7x13, legend).Dx()-6, 6)
	text.Draw(screen, legend, basicfont.Face7x13, legendX, y+26, color.RGBA{160, 160, 160, 255})
}
