// Package verify decides whether a captured transcript matches the
// expected one.
//
// Transcripts are compared as multisets of non-blank lines: blank and
// whitespace-only lines are dropped, both sides are sorted, and the
// sorted sequences are diffed. Any permutation of the expected records
// therefore passes, while a missing, extra or altered record fails.
package verify

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Header names used in the diff text.
const (
	FromName = "exp"
	ToName   = "res"
)

// maxLineBytes bounds a single transcript line.
const maxLineBytes = 16 * 1024 * 1024

// Result is the outcome of one comparison.
type Result struct {
	Pass    bool
	Diff    string // unified diff, empty on pass
	Missing int    // expected lines absent from the actual output
	Extra   int    // actual lines absent from the expected output
}

// Compare checks actual against expected. Line terminators must already
// be stripped.
func Compare(expected, actual []string) Result {
	exp := normalize(expected)
	res := normalize(actual)

	if slices.Equal(exp, res) {
		return Result{Pass: true}
	}
	missing, extra := tally(exp, res)

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withEOL(exp),
		B:        withEOL(res),
		FromFile: FromName,
		ToFile:   ToName,
		Context:  0,
	})
	if err != nil {
		// GetUnifiedDiffString only fails on writer errors, which a
		// strings.Builder never returns.
		diff = fmt.Sprintf("diff unavailable: %v\n", err)
	}
	return Result{Diff: diff, Missing: missing, Extra: extra}
}

// CompareFiles reads both transcripts and compares them.
func CompareFiles(expectedPath, actualPath string) (Result, error) {
	exp, err := ReadLines(expectedPath)
	if err != nil {
		return Result{}, fmt.Errorf("reading expected transcript: %w", err)
	}
	res, err := ReadLines(actualPath)
	if err != nil {
		return Result{}, fmt.Errorf("reading actual transcript: %w", err)
	}
	return Compare(exp, res), nil
}

// ReadLines returns the lines of the file at path without terminators.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Lines(f)
}

// Lines splits r into lines, stripping "\n" and "\r\n" terminators.
func Lines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// WriteDiff persists r's diff at path when r failed. On pass it removes
// any diff left at path, so a diff file exists only for a failing test.
func WriteDiff(path string, r Result) error {
	if r.Pass {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.WriteFile(path, []byte(r.Diff), 0o644)
}

// normalize drops whitespace-only lines and sorts the rest.
func normalize(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// tally counts, as multisets, the lines only in exp and the lines only
// in res.
func tally(exp, res []string) (missing, extra int) {
	counts := make(map[string]int, len(exp))
	for _, l := range exp {
		counts[l]++
	}
	for _, l := range res {
		counts[l]--
	}
	for _, n := range counts {
		if n > 0 {
			missing += n
		} else {
			extra -= n
		}
	}
	return missing, extra
}

func withEOL(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
