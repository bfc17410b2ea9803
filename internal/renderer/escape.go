package renderer

import "strings"

var escaper = strings.NewReplacer(
	`'`, "&#39;",
	`"`, "&quot;",
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape replaces the five markup-significant characters ' " & < > with
// character references. Nothing else is touched.
func Escape(s string) string {
	return escaper.Replace(s)
}
