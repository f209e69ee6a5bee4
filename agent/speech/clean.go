// Package speech prepares reply text for phone TTS playback.
package speech

import "strings"

// replacer expands tokens that TTS engines read badly over a phone line.
var replacer = strings.NewReplacer(
	"AED", "Arab Emirates Dirham",
	"ROI", "return on investment",
	"AI", "A.I.",
	"%", " percent",
	"&", " and ",
	" vs ", " versus ",
	"3.3M", "3.3 million",
	"2.1M", "2.1 million",
	"1.2M", "1.2 million",
)

// Clean expands abbreviations and collapses whitespace so the spoken reply
// sounds natural.
func Clean(text string) string {
	text = replacer.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
