package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"debug80/emu/log"
)

type mode byte

const (
	runMode     mode = iota // Run a program headless
	debugMode               // Run a program under the debug server
	infoMode                // Show program segments
	versionMode             // Show debug80 version
)

type (
	CLI struct {
		Run     Run     `cmd:"" help:"Run a program, the terminal acts as the keypad."`
		Debug   Debug   `cmd:"" help:"Load a program paused and serve the debugger websocket."`
		Info    Info    `cmd:"" help:"Show program segments."`
		Version Version `cmd:"" help:"Show debug80 version."`

		Log    logModMask `help:"${log_help}" placeholder:"mod0,mod1,..."`
		Config string     `name:"config" help:"${config_help}" type:"path"`
		Trace  *outfile   `name:"trace" help:"Write CPU trace log." placeholder:"FILE|stdout|stderr"`

		mode mode
	}

	Program struct {
		Path     string  `arg:"" name:"/path/to/program" help:"${program_help}" type:"existingfile"`
		Origin   address `name:"origin" help:"Load address of raw binaries." default:"0x0800"`
		Platform string  `name:"platform" help:"Override the configured platform (tec1, tec1g)."`
	}

	Run struct {
		Program `embed:""`

		Slow bool `name:"slow" help:"Start at slow speed."`
	}

	Debug struct {
		Program `embed:""`

		Addr string `name:"addr" help:"Debug server address, overrides the configuration."`
		Go   bool   `name:"go" help:"Start running instead of paused."`
	}

	Info struct {
		Program `embed:""`
	}

	Version struct{}
)

var vars = kong.Vars{
	"program_help": "Intel HEX file (.hex, .ihx) or raw binary.",
	"config_help":  "Configuration file, defaults to config.toml in the user config directory.",
	"log_help":     "Enable logging for specified modules.",
}

func parseArgs(args []string) CLI {
	var cfg CLI
	parser, err := kong.New(&cfg,
		kong.Name("debug80"),
		kong.Description("TEC-1 and TEC-1G emulator and debugger."),
		kong.UsageOnError(),
		kong.Help(printHelp),
		vars)
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args)
	checkf(err, "failed to parse command line")
	checkf(ctx.Error, "failed to parse command line")

	switch ctx.Command() {
	case "debug </path/to/program>":
		cfg.mode = debugMode
	case "info </path/to/program>":
		cfg.mode = infoMode
	case "version":
		cfg.mode = versionMode
	default:
		cfg.mode = runMode
	}
	return cfg
}

func printHelp(options kong.HelpOptions, ctx *kong.Context) error {
	if err := kong.DefaultHelpPrinter(options, ctx); err != nil {
		return err
	}
	if strings.HasPrefix(ctx.Command(), "run") || strings.HasPrefix(ctx.Command(), "debug") {
		loggingHelp := `
Log modules:
  The --log flag accepts a comma-separated list of modules.

  Valid log modules are:
%s

  As a special case, the following values are accepted:
    - no                     Disable all logging.
    - all                    Enable all logs.
`
		var strs []string
		for _, m := range log.ModuleNames() {
			strs = append(strs, "    - "+m)
		}

		fmt.Fprintf(os.Stderr, loggingHelp, strings.Join(strs, "\n"))
	}

	return nil
}

type logModMask log.ModuleMask

// Decode decodes a comma-separated list of module names into a module mask.
//
// Implements kong.MapperValue interface.
func (lm logModMask) Decode(ctx *kong.DecodeContext) error {
	nolog := false
	allLogs := false

	tok := ctx.Scan.Pop()
	for _, v := range strings.Split(tok.Value.(string), ",") {
		switch v {
		case "all":
			allLogs = true
		case "no":
			nolog = true
		default:
			mod, ok := log.ModuleByName(v)
			if !ok {
				return fmt.Errorf("unknown log module %s", v)
			}
			lm |= logModMask(mod.Mask())
		}
	}

	if nolog {
		if allLogs {
			return fmt.Errorf("cannot use 'all' and 'no' together")
		}
		if lm != 0 {
			return fmt.Errorf("cannot combine 'no' with other log modules")
		}
		log.Disable()
		return nil
	}

	if allLogs {
		lm = logModMask(log.ModuleMaskAll)
	}

	log.EnableDebugModules(log.ModuleMask(lm))
	return nil
}

// address is a 16-bit address given in decimal, 0x-prefixed or $-prefixed hex.
type address uint16

// Decode implements kong.MapperValue interface.
func (a *address) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	s, ok := tok.Value.(string)
	if !ok {
		return fmt.Errorf("expected an address but got %v", tok.Value)
	}
	if rest, ok := strings.CutPrefix(s, "$"); ok {
		s = "0x" + rest
	}
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid address %q", tok.Value)
	}
	*a = address(v)
	return nil
}

func (a address) String() string { return fmt.Sprintf("$%04X", uint16(a)) }

type outfile struct {
	w     io.Writer
	name  string
	close func() error
}

// Decode decodes FILE|stdout|stderr into an io.WriteCloser
// that writes to that file.
//
// Implements kong.MapperValue interface.
func (f *outfile) Decode(ctx *kong.DecodeContext) error {
	tok := ctx.Scan.Pop()
	f.name = tok.Value.(string)
	f.close = func() error { return nil }

	switch f.name {
	case "stdout":
		f.w = os.Stdout
	case "stderr":
		f.w = os.Stderr
	default:
		fd, err := os.Create(f.name)
		if err != nil {
			return err
		}
		f.w = fd
		f.close = fd.Close
	}
	return nil
}

func (f *outfile) String() string              { return f.name }
func (f *outfile) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *outfile) Close() error                { return f.close() }

func checkf(err error, format string, args ...any) {
	if err == nil {
		return
	}
	fatalf(format+".\n"+err.Error(), args...)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal error:")
	fmt.Fprintf(os.Stderr, "\n\t%s\n", fmt.Sprintf(format, args...))
	os.Exit(1)
}
