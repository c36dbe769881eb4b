// main.go -- ptrhashctl entry point and command dispatch
//
// Adapted from the teacher's example/main.go + cmds.go: same
// FlagSet-per-subcommand shape and registerCommand dispatch table,
// retargeted from mph.DBWriter/DBReader at persist.Writer/Reader.

package main

import (
	"fmt"
	"os"
	"sync"

	flag "github.com/opencoff/pflag"
)

// Option carries global flags down into a subcommand's run.
type Option struct {
	verbose bool
}

func (o *Option) Printf(s string, v ...interface{}) {
	if o.verbose {
		fmt.Printf(s, v...)
	}
}

type command interface {
	run(args []string, opt *Option) error
}

var cmds = struct {
	sync.Mutex
	m map[string]command
}{
	m: make(map[string]command),
}

func registerCommand(nm string, cmd command) {
	cmds.Lock()
	defer cmds.Unlock()
	if _, ok := cmds.m[nm]; ok {
		panic(fmt.Sprintf("ptrhashctl: %s already registered", nm))
	}
	cmds.m[nm] = cmd
}

func runCommand(args []string, o *Option) error {
	nm := args[0]

	cmds.Lock()
	cmd, ok := cmds.m[nm]
	cmds.Unlock()
	if !ok {
		return fmt.Errorf("unknown command %q", nm)
	}
	return cmd.run(args, o)
}

func main() {
	var opt Option

	usage := fmt.Sprintf(
		`%s - build and inspect ptrhash constant databases

Usage: %s [global-options] CMD CMD-ARGS...

CMD is one of:

  build  [options] DB [INPUTS...]  -- build a constant DB from key/value inputs
  dump   [options] DB              -- dump a constant DB's contents or metadata
  verify [options] DB              -- re-derive every key's slot and check the bijection

Global options:
`, os.Args[0], os.Args[0])

	fs := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(os.Stdout)
	fs.BoolVarP(&opt.verbose, "verbose", "V", false, "show verbose output")
	fs.Usage = func() {
		fmt.Print(usage)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		die("%s", err)
	}

	args := fs.Args()
	if len(args) < 1 {
		fmt.Print(usage)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err := runCommand(args, &opt); err != nil {
		die("%s", err)
	}
}

func die(f string, v ...interface{}) {
	warn(f, v...)
	os.Exit(1)
}

func warn(f string, v ...interface{}) {
	s := fmt.Sprintf(os.Args[0]+": "+f, v...)
	if n := len(s); n == 0 || s[n-1] != '\n' {
		s += "\n"
	}
	os.Stderr.WriteString(s)
	os.Stderr.Sync()
}
