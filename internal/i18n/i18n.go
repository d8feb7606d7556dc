// Package i18n resolves message codes into human-readable text. Gated
// endpoints return both the code and its localized message, so clients can
// either display the text or branch on the code.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

var (
	bundle    *i18n.Bundle
	localizer *i18n.Localizer
	current   string
	initOnce  sync.Once
)

// Init loads the embedded locale catalogs and selects the active language.
// English is the fallback for any missing message.
func Init(lang string) {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		bundle.ParseMessageFileBytes(data, f.Name())
	}

	localizer = i18n.NewLocalizer(bundle, lang, "en")
	current = lang
}

// Lang reports the active language code.
func Lang() string {
	if current == "" {
		return "en"
	}
	return current
}

// T translates a message code. Extra args are applied fmt.Sprintf-style to
// the resolved message. Unknown codes fall back to the code itself, so a
// missing catalog entry never hides the underlying error.
func T(messageID string, args ...any) string {
	// Serve commands call Init at startup; this covers tools and tests that
	// translate before any Init, without racing on the package state.
	initOnce.Do(func() {
		if localizer == nil {
			Init("en")
		}
	})
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
