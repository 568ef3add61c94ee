// Package sanitize normalizes paragraph text into characters a learner can type.
package sanitize

// suggestions are offered as defaults by the import wizard; nothing applies them
// without an explicit action.
var suggestions = map[rune]string{
	'—': "--",
	'–': "-",
	'‘': "'",
	'’': "'",
	'“': `"`,
	'”': `"`,
	'…': "...",
	'«': `"`,
	'»': `"`,
	'‹': "'",
	'›': "'",
	'′': "'",
	'″': `"`,
	'´': "'",
	'ʼ': "'",
	'©': "(c)",
	'®': "(R)",
	'™': "(TM)",
	'½': "1/2",
	'¼': "1/4",
	'¾': "3/4",
	'°': " degrees",
	'€': "EUR",
	'£': "GBP",
	'§': "S",
	'†': "+",
	'÷': "/",
	'−': "-",
}

// Suggest returns a typable replacement for r when one is known.
func Suggest(r rune) (string, bool) {
	s, ok := suggestions[r]
	return s, ok
}
