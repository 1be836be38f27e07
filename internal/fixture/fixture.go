// Package fixture defines the static catalog of test cases a run executes.
package fixture

import (
	"fmt"
	"path/filepath"
	"slices"
)

// Category tags a test case. The tag is fixed when the catalog is built.
type Category int

const (
	// Plain tests run and are reported without annotation.
	Plain Category = iota
	// Control tests run like plain tests; the tag is informational only.
	Control
	// Shutdown tests are expected to make the server exit. A passing
	// shutdown test is followed by a wait for the exit and a restart.
	Shutdown
	// Skip tests are never run and never reported.
	Skip
)

// String returns the lower-case category name.
func (c Category) String() string {
	switch c {
	case Control:
		return "control"
	case Shutdown:
		return "shutdown"
	case Skip:
		return "skip"
	default:
		return "plain"
	}
}

// Tag returns the console annotation for the category. Shutdown tests
// are tagged "load" as the original harness printed them.
func (c Category) Tag() string {
	switch c {
	case Control:
		return "control"
	case Shutdown:
		return "load"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler so categories read well
// in summary.json.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	switch string(b) {
	case "plain", "":
		*c = Plain
	case "control":
		*c = Control
	case "shutdown":
		*c = Shutdown
	case "skip":
		*c = Skip
	default:
		return fmt.Errorf("unknown category %q", b)
	}
	return nil
}

// Case is one test: a client input script paired with an expected
// transcript.
type Case struct {
	Index    int
	Name     string // testNN
	Input    string // path to testNN.dsl
	Expected string // path to testNN.exp
	Category Category
}

// Name returns the artifact base name for index i: "test" followed by
// the index zero-padded to two digits.
func Name(i int) string {
	return fmt.Sprintf("test%02d", i)
}

// Spec is the input to NewCatalog.
type Spec struct {
	Dir      string // fixture directory
	Start    int    // inclusive
	End      int    // exclusive
	Control  []int
	Shutdown []int
	Skip     []int
}

// Catalog is the ordered list of cases for a run.
type Catalog struct {
	cases []Case
}

// NewCatalog builds one case per index in [Start, End), ascending. When an
// index is in several sets, Skip wins over Shutdown, which wins over
// Control.
func NewCatalog(spec Spec) *Catalog {
	if spec.End < spec.Start {
		return &Catalog{}
	}
	cases := make([]Case, 0, spec.End-spec.Start)
	for i := spec.Start; i < spec.End; i++ {
		name := Name(i)
		cases = append(cases, Case{
			Index:    i,
			Name:     name,
			Input:    filepath.Join(spec.Dir, name+".dsl"),
			Expected: filepath.Join(spec.Dir, name+".exp"),
			Category: categorize(i, spec),
		})
	}
	return &Catalog{cases: cases}
}

func categorize(i int, spec Spec) Category {
	switch {
	case slices.Contains(spec.Skip, i):
		return Skip
	case slices.Contains(spec.Shutdown, i):
		return Shutdown
	case slices.Contains(spec.Control, i):
		return Control
	default:
		return Plain
	}
}

// Cases returns a copy of the cases in run order.
func (c *Catalog) Cases() []Case {
	return slices.Clone(c.cases)
}

// Len reports the number of cases, skipped ones included.
func (c *Catalog) Len() int {
	return len(c.cases)
}

// Count reports how many cases carry category cat.
func (c *Catalog) Count(cat Category) int {
	n := 0
	for _, tc := range c.cases {
		if tc.Category == cat {
			n++
		}
	}
	return n
}
