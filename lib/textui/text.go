package textui

import (
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Fprintf is like fmt.Fprintf, but applies the grouping/locale extensions
// of golang.org/x/text/message.Printer (e.g. "1,234" instead of "1234"),
// and marks the call site as producing user-facing text rather than an
// internal diagnostic.
func Fprintf(w io.Writer, key string, a ...any) (n int, err error) {
	return printer.Fprintf(w, key, a...)
}

// Sprintf is the string-returning counterpart of Fprintf.
func Sprintf(key string, a ...any) string {
	return printer.Sprintf(key, a...)
}
