package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/ringfile/internal/config"
)

// Run is the main entry point. Returns exit code.
//
// args includes the program name. sigCh may be nil; when it delivers a
// signal the context passed to the running command is cancelled.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	globals, err := parseGlobalFlags(args[1:])
	if err != nil {
		fprintln(errOut, "error:", err)
		printUsage(errOut, nil)

		return 1
	}

	if globals.help {
		printUsage(out, nil)

		return 0
	}

	cfg, err := config.Load(config.LoadInput{
		WorkDirOverride: globals.workDir,
		ConfigPath:      globals.configPath,
		Overrides:       globals.overrides(),
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log, closeLog, err := newLogger(cfg, errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() {
		closeErr := closeLog()
		if closeErr != nil {
			fprintln(errOut, "error: closing log file:", closeErr)
		}
	}()

	sess := &session{cfg: cfg, log: log, in: in, env: env}
	commands := allCommands(sess)

	if len(globals.remaining) == 0 {
		printUsage(out, commands)

		return 0
	}

	name, cmdArgs := globals.remaining[0], globals.remaining[1:]

	cmd, ok := findCommand(commands, name)
	if !ok {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, commands)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	log.WithField("command", name).Debug("running command")

	return cmd.Run(ctx, NewIO(out, errOut), cmdArgs)
}

func allCommands(sess *session) []*Command {
	return []*Command{
		AddCmd(sess),
		PopCmd(sess),
		PeekCmd(sess),
		LsCmd(sess),
		LenCmd(sess),
		InfoCmd(sess),
		CheckCmd(sess),
		ClearCmd(sess),
		ReplCmd(sess),
		PrintConfigCmd(sess),
	}
}

func findCommand(commands []*Command, name string) (*Command, bool) {
	for _, c := range commands {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

var errFileRequiresValue = errors.New("--file cannot be empty")

type globalFlags struct {
	workDir     string
	configPath  string
	file        string
	fileSet     bool
	capacity    int
	payloadSize int
	verbose     bool
	help        bool
	remaining   []string
}

func (g globalFlags) overrides() config.Overrides {
	o := config.Overrides{
		File:        g.file,
		FileSet:     g.fileSet,
		Capacity:    g.capacity,
		PayloadSize: g.payloadSize,
	}

	if g.verbose {
		o.LogLevel = "debug"
	}

	return o
}

// parseGlobalFlags parses flags up to the first non-flag argument, which is
// the command name.
func parseGlobalFlags(args []string) (globalFlags, error) {
	var g globalFlags

	fs := newGlobalFlagSet(&g)

	err := fs.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			g.help = true

			return g, nil
		}

		return globalFlags{}, err
	}

	g.fileSet = fs.Changed("file")
	if g.fileSet && g.file == "" {
		return globalFlags{}, errFileRequiresValue
	}

	if fs.Changed("capacity") && g.capacity < 1 {
		return globalFlags{}, fmt.Errorf("--capacity must be positive, got %d", g.capacity)
	}

	if fs.Changed("payload-size") && g.payloadSize < 1 {
		return globalFlags{}, fmt.Errorf("--payload-size must be positive, got %d", g.payloadSize)
	}

	g.remaining = fs.Args()

	return g, nil
}

func newGlobalFlagSet(g *globalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("ringy", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&g.workDir, "cwd", "C", "", "Run as if started in `dir`")
	fs.StringVarP(&g.configPath, "config", "c", "", "Use specified config `file`")
	fs.StringVarP(&g.file, "file", "f", "", "Buffer file `path`")
	fs.IntVar(&g.capacity, "capacity", 0, "Number of elements; changing this for an existing file discards its contents")
	fs.IntVar(&g.payloadSize, "payload-size", 0, "Maximum element size in bytes; changing this for an existing file discards its contents")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	return fs
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, commands []*Command) {
	if commands == nil {
		commands = allCommands(&session{})
	}

	var g globalFlags

	fprintln(w, `ringy - persistent ring buffer of text records

Usage: ringy [options] <command> [args]

Options:`)
	fprintln(w, strings.TrimRight(newGlobalFlagSet(&g).FlagUsages(), "\n"))
	fprintln(w)
	fprintln(w, "Commands:")

	for _, c := range commands {
		fprintln(w, c.HelpLine())
	}
}
