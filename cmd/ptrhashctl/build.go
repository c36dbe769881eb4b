// build.go -- 'build' command: construct a persist DB from text/CSV inputs
//
// Adapted from the teacher's example/make.go: same flag shape and
// per-extension input dispatch, retargeted at persist.NewWriter /
// ptrhash.Params instead of mph.NewChdDBWriter/NewBBHashDBWriter.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/ptrhash"
	"github.com/opencoff/ptrhash/persist"
)

type buildCommand struct{}

func init() {
	registerCommand("build", &buildCommand{})
}

func (c *buildCommand) run(args []string, opt *Option) (err error) {
	var alpha, lambda float64
	var w *persist.Writer

	defer func(e *error) {
		if *e != nil && w != nil {
			w.Abort()
		}
	}(&err)

	fs := flag.NewFlagSet("build", flag.ExitOnError)
	fs.SetOutput(os.Stdout)
	fs.Float64VarP(&alpha, "alpha", "a", 0.99, "use `A` as the load factor")
	fs.Float64VarP(&lambda, "lambda", "l", 3.0, "use `L` as the average bucket occupancy")
	fs.Usage = func() {
		fmt.Print(`Usage: build [options] DB [INPUT...]

where:
  DB     is the name of the output constant-database file
  INPUT  is one or more optional input files

Input files must end in:
  .txt   a key,value pair per line, delimited by whitespace (or a bare
         key per line for a keys-only database)
  .csv   a comma-separated key,value file

With no INPUT, records are read from stdin as whitespace-delimited text.

options:
`)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err = fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("build: insufficient args")
	}

	fn := rest[0]
	inputs := rest[1:]

	params := ptrhash.DefaultParams()
	params.Alpha = alpha
	params.Lambda = lambda

	w, err = persist.NewWriter(fn, params)
	if err != nil {
		return fmt.Errorf("build: can't create %s: %w", fn, err)
	}

	var tot uint64
	if len(inputs) > 0 {
		for _, f := range inputs {
			var n uint64
			switch {
			case strings.HasSuffix(f, ".txt"):
				n, err = AddTextFile(w, f, " \t")
			case strings.HasSuffix(f, ".csv"):
				n, err = AddCSVFile(w, f, ',', '#', 0, 1)
			default:
				return fmt.Errorf("build: don't know how to add %s", f)
			}
			if err != nil {
				return fmt.Errorf("build: can't add %s: %w", f, err)
			}
			opt.Printf("+ %s: %d records\n", f, n)
			tot += n
		}
	} else {
		n, err := AddTextStream(w, os.Stdin, " \t")
		if err != nil {
			return fmt.Errorf("build: can't add text from stdin: %w", err)
		}
		opt.Printf("+ <stdin>: %d records\n", n)
		tot += n
	}

	if tot == 0 {
		return fmt.Errorf("build: no records added")
	}

	start := time.Now()
	if err = w.Freeze(); err != nil {
		return fmt.Errorf("build: can't write %s: %w", fn, err)
	}
	delta := time.Since(start)
	opt.Printf("%d keys, %s\n", tot, delta.Truncate(time.Millisecond))

	return nil
}
