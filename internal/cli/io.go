package cli

import (
	"fmt"
	"io"
)

// IO is the output side of one ringy command.
//
// Records and reports go to stdout. Warnings go to stderr and turn the exit
// code into 1; today that is `ringy check` finding a file the next open would
// rebuild. A warning is printed before the first stdout line and again after
// the last, so `ringy check | head -1` still shows it.
type IO struct {
	out    io.Writer
	errOut io.Writer

	warnings []string
	warned   bool // warnings already printed ahead of stdout
}

// NewIO returns an IO writing records to out and diagnostics to errOut.
func NewIO(out, errOut io.Writer) *IO {
	return &IO{out: out, errOut: errOut}
}

// Warn queues a warning as "<problem>: <what happens next>".
func (o *IO) Warn(problem string, consequence string) {
	o.warnings = append(o.warnings, problem+": "+consequence)
}

// Println writes one line to stdout.
func (o *IO) Println(a ...any) {
	o.warnAhead()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted text to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.warnAhead()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes one line to stderr. Used for errors and the REPL's
// per-line failures.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish prints queued warnings a final time and returns the exit code of a
// command whose Exec succeeded.
func (o *IO) Finish() int {
	o.warnAhead()
	o.printWarnings()

	if len(o.warnings) > 0 {
		return 1
	}

	return 0
}

func (o *IO) warnAhead() {
	if o.warned || len(o.warnings) == 0 {
		return
	}

	o.warned = true
	o.printWarnings()
}

func (o *IO) printWarnings() {
	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}
}
