// bootsim runs the kernel memory bootstrap on the host. It feeds a memory
// map described in YAML to the boot frame allocator, builds a page table
// hierarchy inside a simulated physical memory arena and maps the kernel
// heap through it, printing the kernel log as it goes.
package main

import (
	_ "embed"
	"flag"
	"fmt"
	"io"
	"os"

	"fridayos/kernel/kfmt"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

const (
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

//go:embed default.yaml
var defaultConfig []byte

// errorWriter highlights error channel output when it goes to a terminal
// and strips any escape sequences when it does not.
type errorWriter struct {
	w     io.Writer
	color bool
}

func (e *errorWriter) Write(p []byte) (int, error) {
	var err error
	if e.color {
		_, err = io.WriteString(e.w, ansiRed+string(p)+ansiReset)
	} else {
		_, err = io.WriteString(e.w, ansi.Strip(string(p)))
	}

	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func exit(err error) {
	errOut := &errorWriter{w: os.Stderr, color: isTerminal(os.Stderr)}
	fmt.Fprintf(errOut, "[bootsim] error: %s\n", err.Error())
	os.Exit(1)
}

func main() {
	cfgPath := flag.String("config", "", "YAML description of the firmware memory map (built-in 8MiB machine if empty)")
	verbose := flag.Bool("v", false, "print the translation of every heap page")
	flag.Parse()

	var (
		cfg *Config
		err error
	)
	if *cfgPath == "" {
		cfg, err = parseConfig(defaultConfig)
	} else {
		cfg, err = loadConfig(*cfgPath)
	}
	if err != nil {
		exit(err)
	}

	kfmt.SetOutputSink(os.Stdout)
	kfmt.SetErrorSink(&errorWriter{w: os.Stderr, color: isTerminal(os.Stderr)})

	progress := io.Discard
	if isTerminal(os.Stdout) {
		progress = os.Stdout
	}

	rep, err := newSimulator(cfg, progress).run()
	if err != nil {
		exit(err)
	}

	if *verbose {
		for _, m := range rep.HeapPages {
			fmt.Printf("0x%016x -> 0x%08x\n", m.Page.Address(), m.Frame.Address())
		}
	}
}
