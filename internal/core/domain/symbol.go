package domain

import "strings"

// MakeSymbolName turns arbitrary text into an identifier-safe symbol.
// Runs of non-alphanumeric characters collapse into a single underscore,
// leading separators are dropped.
//
// Example:
//
//	MakeSymbolName("base/net-core") // returns "base_net_core"
func MakeSymbolName(text string) string {
	var b strings.Builder
	lastValid := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		if isSymbolChar(ch) {
			b.WriteByte(ch)
			lastValid = true
			continue
		}
		if lastValid {
			b.WriteByte('_')
		}
		lastValid = false
	}
	return b.String()
}

func isSymbolChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

// ExportsMacro returns the preprocessor symbol a shared-library project
// defines while building itself.
func ExportsMacro(projectName string) string {
	return strings.ToUpper(MakeSymbolName(projectName)) + "_EXPORTS"
}
