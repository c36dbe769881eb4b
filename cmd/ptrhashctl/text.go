// text.go -- text/CSV ingestion for the 'build' command
//
// Adapted from the teacher's example/text.go: same delimited-text and
// CSV readers, async producer feeding a channel of parsed records,
// retargeted at persist.Writer.Add instead of mph.DBWriter.Add.

package main

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/opencoff/go-fasthash"

	"github.com/opencoff/ptrhash/persist"
)

type record struct {
	key uint64
	val []byte
}

// AddTextFile adds contents from text file fn where key and value are
// separated by one of the characters in delim. Empty lines, comments
// (#) and duplicate keys are skipped. Returns the number of records
// added.
func AddTextFile(w *persist.Writer, fn string, delim string) (uint64, error) {
	fd, err := os.Open(fn)
	if err != nil {
		return 0, err
	}
	defer fd.Close()

	if len(delim) == 0 {
		delim = " \t"
	}
	return AddTextStream(w, fd, delim)
}

// AddTextStream is AddTextFile over an already-open reader.
func AddTextStream(w *persist.Writer, fd io.Reader, delim string) (uint64, error) {
	sc := bufio.NewScanner(bufio.NewReader(fd))
	ch := make(chan *record, 10)

	go func() {
		var empty string
		for sc.Scan() {
			s := strings.TrimSpace(sc.Text())
			if len(s) == 0 || s[0] == '#' {
				continue
			}

			var k, v string
			if i := strings.IndexAny(s, delim); i > 0 {
				k = s[:i]
				v = strings.TrimLeft(s[i:], delim)
			} else {
				k = s
				v = empty
			}

			if len(v) >= 1<<32-1 {
				continue
			}
			ch <- makeRecord(k, v)
		}
		close(ch)
	}()

	return addFromChan(w, ch)
}

// AddCSVFile adds contents from CSV file fn; kwfield/valfield select
// which columns hold the key and value (0 and 1 by default).
func AddCSVFile(w *persist.Writer, fn string, comma, comment rune, kwfield, valfield int) (uint64, error) {
	fd, err := os.Open(fn)
	if err != nil {
		return 0, err
	}
	defer fd.Close()

	return AddCSVStream(w, fd, comma, comment, kwfield, valfield)
}

// AddCSVStream is AddCSVFile over an already-open reader.
func AddCSVStream(w *persist.Writer, fd io.Reader, comma, comment rune, kwfield, valfield int) (uint64, error) {
	if kwfield < 0 {
		kwfield = 0
	}
	if valfield < 0 {
		valfield = 1
	}
	max := valfield
	if kwfield > valfield {
		max = kwfield
	}
	max++

	ch := make(chan *record, 10)
	cr := csv.NewReader(fd)
	cr.Comma = comma
	cr.Comment = comment
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	go func() {
		for {
			v, err := cr.Read()
			if err != nil {
				break
			}
			if len(v) < max {
				continue
			}
			ch <- makeRecord(v[kwfield], v[valfield])
		}
		close(ch)
	}()

	return addFromChan(w, ch)
}

func addFromChan(w *persist.Writer, ch chan *record) (uint64, error) {
	var n uint64
	for r := range ch {
		err := w.Add(r.key, r.val)
		if err == persist.ErrExists {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// makeRecord hashes key with a fixed seed so repeated builds of the
// same input produce the same on-disk keys; ptrhash.Build's own seed
// retries (for pilot search) are independent of this seed.
func makeRecord(key, val string) *record {
	h := fasthash.Hash64(0, []byte(key))
	return &record{key: h, val: []byte(val)}
}
