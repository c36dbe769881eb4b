// verify.go -- 'verify' command implementation
//
// Adapted from the teacher's example/fsck.go: opening a Reader already
// verifies the header and strong checksum (persist.NewReader), so
// verify's additional job is to re-derive every stored key's slot and
// confirm the MPHF's bijection property holds end to end.

package main

import (
	"fmt"
	"os"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/ptrhash/persist"
)

type verifyCommand struct{}

func init() {
	registerCommand("verify", &verifyCommand{})
}

func (c *verifyCommand) run(args []string, opt *Option) (err error) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	fs.SetOutput(os.Stdout)
	fs.Usage = func() {
		fmt.Print(`Usage: verify [options] DB

where 'DB' is the name of a ptrhash constant database.

Options:
`)
		fs.PrintDefaults()
		os.Exit(0)
	}

	if err = fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("verify: insufficient args")
	}

	rd, err := persist.NewReader(rest[0], 1000)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	defer rd.Close()

	opt.Printf("%s: header and checksum OK, %d keys\n", rest[0], rd.Len())

	seen := make([]bool, rd.Len())
	var n int
	err = rd.IterFunc(func(k uint64, _ []byte) error {
		i := rd.Index(k)
		if int(i) >= len(seen) {
			return fmt.Errorf("key %#x: slot %d out of range [0,%d)", k, i, len(seen))
		}
		if seen[i] {
			return fmt.Errorf("key %#x: slot %d collides with a previously seen key", k, i)
		}
		seen[i] = true
		n++
		return nil
	})
	if err != nil {
		return fmt.Errorf("verify: bijection check failed: %w", err)
	}

	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("verify: slot %d was never claimed by any key", i)
		}
	}

	fmt.Printf("%s: OK, %d keys form a bijection onto [0,%d)\n", rest[0], n, len(seen))
	return nil
}
