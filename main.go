// main.go - Main entry point for the IntuitionXT machine

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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var Version = "dev"

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▒██   ██▒▄▄▄█████▓\033[0m\n\033[38;2;255;50;147m▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▒▒ █ █ ▒░▓  ██▒ ▓▒\033[0m\n\033[38;2;255;80;147m▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ░░  █   ░▒ ▓██░ ▒░\033[0m\n\033[38;2;255;110;147m░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒    ░ █ █ ▒ ░ ▓██▓ ░\033[0m\n\033[38;2;255;140;147m░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ▒██▒ ▒██▒  ▒██▒ ░\033[0m\n\033[38;2;255;170;147m░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ▒▒ ░ ░▓ ░  ▒ ░░\033[0m\n\033[38;2;255;200;147m ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░   ░░   ░▒ ░    ░\033[0m\n\033[38;2;255;230;147m ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░     ░    ░    ░\033[0m\n\033[38;2;255;255;147m ░           ░             ░      ░            ░      ░ ░           ░     ░    ░\033[0m")
	fmt.Println("\nA 16-bit x86 machine: 8086 core, Am186 extensions, PC-style peripherals.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionXT")
	fmt.Println("License: GPLv3 or later")
}

// cliOptions are the flags shared by every machine command. Set flags
// override the config file.
type cliOptions struct {
	configPath string
	romPath    string
	logLevel   string
	logModules string
	exitOnHalt bool
	trace      bool
	perf       bool
	gui        bool
	quiet      bool
	at         string
	history    string
}

func (o *cliOptions) machineConfig(cmd *cobra.Command) (*MachineConfig, error) {
	cfg := DefaultMachineConfig()
	if o.configPath != "" {
		var err error
		if cfg, err = LoadMachineConfig(o.configPath); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("rom") {
		cfg.Memory.ROM = o.romPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-modules") {
		cfg.Log.Modules = o.logModules
	}
	if o.trace {
		cfg.CPU.Trace = true
		cfg.Log.Level = "trace"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildMachine assembles and initialises the machine, and loads program
// (if given) at --at.
func (o *cliOptions) buildMachine(cmd *cobra.Command, program string) (*Machine, *CPUX86Runner, error) {
	cfg, err := o.machineConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	// Keep the interface nil when there is no player.
	var player SpeakerPlayer
	if cfg.Devices.Speaker {
		p, err := NewOtoPlayer(SPEAKER_SAMPLE_RATE)
		if err != nil {
			logWarn(modAudio, "no audio output, speaker is silent", "err", err)
		} else {
			player = p
		}
	}

	m, err := cfg.Build(player)
	if err != nil {
		return nil, nil, err
	}
	m.ExitOnHalt = o.exitOnHalt
	if err := m.Init(); err != nil {
		m.Close()
		return nil, nil, err
	}

	runner := NewCPUX86Runner(m.System)
	runner.PerfEnabled = o.perf
	if program != "" {
		seg, off, err := parseSegOffFlag(o.at)
		if err != nil {
			m.Close()
			return nil, nil, fmt.Errorf("invalid --at: %w", err)
		}
		if err := runner.LoadProgram(program, seg, off); err != nil {
			m.Close()
			return nil, nil, err
		}
	}
	return m, runner, nil
}

// parseSegOffFlag parses "seg:off" with hex parts (0x prefix optional).
func parseSegOffFlag(value string) (uint16, uint16, error) {
	seg, off, ok := strings.Cut(value, ":")
	if !ok {
		return 0, 0, fmt.Errorf("%q is not seg:off", value)
	}
	s, err := parseUint16Flag(seg)
	if err != nil {
		return 0, 0, err
	}
	o, err := parseUint16Flag(off)
	if err != nil {
		return 0, 0, err
	}
	return s, o, nil
}

func parseUint16Flag(value string) (uint16, error) {
	value = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(value), "0x"), "0X")
	parsed, err := strconv.ParseUint(value, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(parsed), nil
}

func addMachineFlags(cmd *cobra.Command, o *cliOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "machine config (YAML)")
	f.StringVar(&o.romPath, "rom", "", "ROM image mapped at the top of the ROM window")
	f.StringVar(&o.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error, crit")
	f.StringVar(&o.logModules, "log-modules", "", "comma-separated modules to log (empty for all)")
	f.BoolVar(&o.trace, "trace", false, "log every instruction (implies --log-level trace)")
	f.StringVar(&o.at, "at", "0000:0100", "seg:off to load a raw program at")
}

func newRunCmd() *cobra.Command {
	o := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "run [program]",
		Short: "Boot the machine from the reset vector, or run a raw program",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program := ""
			if len(args) == 1 {
				program = args[0]
			}
			m, runner, err := o.buildMachine(cmd, program)
			if err != nil {
				return err
			}
			defer m.Close()
			if !o.quiet {
				boilerPlate()
			}
			return runMachine(cmd.Context(), o, m, runner)
		},
	}
	addMachineFlags(cmd, o)
	cmd.Flags().BoolVar(&o.exitOnHalt, "exit-on-halt", false, "stop when the CPU halts with interrupts disabled")
	cmd.Flags().BoolVar(&o.perf, "perf", false, "report MIPS once a second")
	cmd.Flags().BoolVar(&o.gui, "gui", false, "open the status window")
	cmd.Flags().BoolVarP(&o.quiet, "quiet", "q", false, "skip the banner")
	return cmd
}

// runMachine runs the CPU, the console pump and the optional status window
// together. The first to fail (or the window closing) stops the rest.
func runMachine(parent context.Context, o *cliOptions, m *Machine, runner *CPUX86Runner) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	runner.StartExecution()
	g.Go(func() error {
		defer cancelRun()
		waitErr := make(chan error, 1)
		go func() { waitErr <- runner.Wait() }()
		var err error
		select {
		case err = <-waitErr:
		case <-gctx.Done():
			runner.Stop()
			err = <-waitErr
		}
		if errors.Is(err, ErrHalted) {
			logInfo(modSystem, "cpu halted")
			return nil
		}
		return err
	})

	if m.Console != nil {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			host := NewTerminalHost(m.Console)
			host.OnEscape = cancelRun
			host.Start()
			defer host.Stop()
			fmt.Fprintln(os.Stderr, "console on port E9; Ctrl-] quits\r")
			g.Go(func() error { return host.Pump(gctx) })
		} else {
			g.Go(func() error { return PumpConsole(gctx, m.Console, os.Stdout) })
		}
	}

	if o.gui {
		win := NewStatusWindow(m, runner)
		win.SetHardResetHandler(runner.Reset)
		if err := win.Start(); err != nil {
			logWarn(modGUI, "status window not opened", "err", err)
		} else {
			g.Go(func() error {
				select {
				case <-win.Done():
					cancelRun()
				case <-gctx.Done():
					win.Close()
				}
				return nil
			})
		}
	}

	err := g.Wait()
	fmt.Fprintf(os.Stderr, "\r\n%s\r\n", strings.ReplaceAll(m.Snapshot().String(), "\n", "\r\n"))
	return err
}

func newMonitorCmd() *cobra.Command {
	o := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "monitor [program]",
		Short: "Start the machine stopped in the machine monitor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program := ""
			if len(args) == 1 {
				program = args[0]
			}
			m, runner, err := o.buildMachine(cmd, program)
			if err != nil {
				return err
			}
			defer m.Close()
			runner.Reset()
			defer runner.Stop()

			mon := NewMachineMonitor(m, runner)
			repl, err := NewMonitorREPL(mon, runner, o.history)
			if err != nil {
				return err
			}
			defer repl.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			if m.Console != nil {
				g.Go(func() error { return PumpConsole(gctx, m.Console, repl.out) })
			}
			if o.gui {
				win := NewStatusWindow(m, runner)
				win.SetHardResetHandler(runner.Reset)
				if err := win.Start(); err != nil {
					logWarn(modGUI, "status window not opened", "err", err)
				}
			}
			g.Go(func() error {
				defer cancel()
				return repl.Run(gctx)
			})
			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	addMachineFlags(cmd, o)
	home, _ := os.UserHomeDir()
	cmd.Flags().StringVar(&o.history, "history", filepath.Join(home, ".intuition_xt_history"), "monitor command history file")
	cmd.Flags().BoolVar(&o.gui, "gui", false, "open the status window")
	return cmd
}

func newDisasmCmd() *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "disasm <image>",
		Short: "Disassemble a raw 16-bit image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, ok := ParseAddress(origin)
			if !ok || addr >= X86_MEMORY_SIZE {
				return fmt.Errorf("invalid --origin %q", origin)
			}
			code, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), DisassembleImage(code, uint32(addr)))
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "0", "linear load address (seg:off, $hex, 0xhex)")
	return cmd
}

func newDumpCmd() *cobra.Command {
	o := &cliOptions{}
	var (
		start, radix, out string
		length            uint32
		steps             int
	)
	cmd := &cobra.Command{
		Use:   "dump [program]",
		Short: "Dump memory, optionally after running some instructions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program := ""
			if len(args) == 1 {
				program = args[0]
			}
			m, runner, err := o.buildMachine(cmd, program)
			if err != nil {
				return err
			}
			defer m.Close()
			runner.Reset()
			for i := 0; i < steps; i++ {
				if err := runner.Step(); err != nil {
					return fmt.Errorf("after %d instructions: %w", i, err)
				}
			}

			if out != "" {
				return m.Memory.DumpToFile(out)
			}
			r, err := ParseRadix(radix)
			if err != nil {
				return err
			}
			addr, ok := ParseAddress(start)
			if !ok {
				return fmt.Errorf("invalid --start %q", start)
			}
			data := m.Memory.DumpRange(uint32(addr), length)
			for i := 0; i < len(data); i += 16 {
				end := min(i+16, len(data))
				fmt.Fprintf(cmd.OutOrStdout(), "%05X: %s\n", (uint32(addr)+uint32(i))%X86_MEMORY_SIZE, FormatDump(r, data[i:end]))
			}
			return nil
		},
	}
	addMachineFlags(cmd, o)
	cmd.Flags().StringVar(&start, "start", "0", "first address (seg:off, $hex, 0xhex)")
	cmd.Flags().Uint32Var(&length, "len", 256, "bytes to dump")
	cmd.Flags().StringVar(&radix, "radix", "hex", "hex, dec, oct or bin")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the whole 1MB image to a file instead")
	cmd.Flags().IntVar(&steps, "steps", 0, "instructions to execute first")
	return cmd
}

func newInfoCmd() *cobra.Command {
	o := &cliOptions{}
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the memory map and attached devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, _, err := o.buildMachine(cmd, "")
			if err != nil {
				return err
			}
			defer m.Close()
			fmt.Fprint(cmd.OutOrStdout(), MachineInfoTree(m))
			return nil
		},
	}
	addMachineFlags(cmd, o)
	return cmd
}

func newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List compiled-in features",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			writeFeatures(cmd.OutOrStdout())
		},
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intuition_xt",
		Short:         "IntuitionXT 16-bit x86 machine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		InitLogger(os.Stderr)
	}
	rootCmd.AddCommand(
		newRunCmd(),
		newMonitorCmd(),
		newDisasmCmd(),
		newDumpCmd(),
		newInfoCmd(),
		newFeaturesCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
