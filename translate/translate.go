// Package translate formats the user-visible regvm messages.
//
// Messages are written as en-US Sprintf formats. They are rendered with a
// printer for the host locale, which is chosen on first use.
package translate

import (
	"log"
	"sync"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DEFAULT_LANGUAGE = "en-US" // Used when the host reports no locale.
)

var (
	once     sync.Once
	tag      language.Tag
	printer  *message.Printer
	catalogs = message.DefaultCatalog
)

// setup picks the printer from the host locales.
func setup() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("regvm: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{DEFAULT_LANGUAGE}
	}

	tag = message.MatchLanguage(locales...)
	printer = message.NewPrinter(tag, message.Catalog(catalogs))
}

// Language returns the language messages are rendered in.
func Language() language.Tag {
	once.Do(setup)
	return tag
}

// From an en-US Sprintf() format, translate to string.
func From(key message.Reference, args ...any) string {
	once.Do(setup)
	return printer.Sprintf(key, args...)
}
