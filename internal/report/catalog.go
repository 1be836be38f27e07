package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/conform/internal/fixture"
)

// RenderCatalog writes the resolved test catalog as an aligned table:
// name, category and input script, then a per-category count.
func RenderCatalog(w io.Writer, tests []fixture.Case) {
	nameWidth, catWidth := runewidth.StringWidth("TEST"), runewidth.StringWidth("CATEGORY")
	for _, tc := range tests {
		nameWidth = max(nameWidth, runewidth.StringWidth(tc.Name))
		catWidth = max(catWidth, runewidth.StringWidth(tc.Category.String()))
	}

	fmt.Fprintf(w, "%s  %s  %s\n",
		runewidth.FillRight("TEST", nameWidth), runewidth.FillRight("CATEGORY", catWidth), "INPUT")
	counts := map[fixture.Category]int{}
	for _, tc := range tests {
		counts[tc.Category]++
		fmt.Fprintf(w, "%s  %s  %s\n",
			runewidth.FillRight(tc.Name, nameWidth), runewidth.FillRight(tc.Category.String(), catWidth), tc.Input)
	}

	title := cases.Title(language.English)
	var parts []string
	for _, cat := range []fixture.Category{fixture.Plain, fixture.Control, fixture.Shutdown, fixture.Skip} {
		if n := counts[cat]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", title.String(cat.String()), n))
		}
	}
	if len(parts) == 0 {
		fmt.Fprintln(w, "No tests in range")
		return
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}
