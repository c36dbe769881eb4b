// dump.go -- 'dump' command implementation
//
// Adapted from the teacher's example/dump.go, retargeted at
// persist.Reader.

package main

import (
	"fmt"
	"os"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/ptrhash/persist"
)

type dumpCommand struct{}

func init() {
	registerCommand("dump", &dumpCommand{})
}

func (c *dumpCommand) run(args []string, opt *Option) (err error) {
	var all, meta bool

	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.SetOutput(os.Stdout)
	fs.BoolVarP(&all, "all", "a", false, "dump keys and values")
	fs.BoolVarP(&meta, "meta", "m", false, "dump only metadata")
	fs.Usage = func() {
		fmt.Print(`Usage: dump [options] DB

where 'DB' is the name of a ptrhash constant database.

Options:
`)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err = fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("dump: %w", err)
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("dump: insufficient args")
	}

	rd, err := persist.NewReader(rest[0], 1000)
	if err != nil {
		return fmt.Errorf("dump: %w", err)
	}
	defer rd.Close()

	switch {
	case meta:
		rd.DumpMeta(os.Stdout)
	case all:
		rd.IterFunc(func(k uint64, v []byte) error {
			fmt.Printf("%#x: %x\n", k, v)
			return nil
		})
	default:
		rd.IterFunc(func(k uint64, _ []byte) error {
			fmt.Printf("%#x\n", k)
			return nil
		})
	}
	return nil
}
