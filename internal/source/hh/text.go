package hh

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// clean collapses every run of whitespace, non-breaking spaces included, to a
// single space and returns the NFC form.
func clean(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

var highlight = strings.NewReplacer("<highlighttext>", "", "</highlighttext>", "")

func stripHighlight(s string) string {
	return highlight.Replace(s)
}
