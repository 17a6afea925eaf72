// Package i18n resolves the request language and translates user facing
// messages through a golang.org/x/text catalog.
package i18n

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// LangParam is the query parameter used to select a language.
const LangParam = "lang"

type ctxKey struct{}

var (
	supported = []language.Tag{language.English, language.Arabic}
	matcher   = language.NewMatcher(supported)
	messages  = buildCatalog()
)

// Default returns the fallback language.
func Default() language.Tag {
	return supported[0]
}

// Supported returns the languages with a translation catalog.
func Supported() []language.Tag {
	return supported
}

// Match maps arbitrary tags onto the closest supported language.
func Match(tags ...language.Tag) language.Tag {
	if len(tags) == 0 {
		return Default()
	}
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default()
	}
	return supported[idx]
}

// ResolveTag picks the language for r: the lang query parameter first,
// then Accept-Language.
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return Default()
	}

	if value := strings.TrimSpace(r.URL.Query().Get(LangParam)); value != "" {
		if tag, err := language.Parse(value); err == nil {
			return Match(tag)
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil {
			return Match(tags...)
		}
	}

	return Default()
}

// Middleware stores the resolved language in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag := ResolveTag(r)
		w.Header().Set("Content-Language", tag.String())
		next.ServeHTTP(w, r.WithContext(WithTag(r.Context(), tag)))
	})
}

func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, ctxKey{}, tag)
}

func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(ctxKey{}).(language.Tag); ok {
		return tag
	}
	return Default()
}

// Printer returns a message printer for tag backed by the service catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(messages))
}

// T translates key into the language stored in ctx. Unknown keys are
// returned unchanged.
func T(ctx context.Context, key string) string {
	return Printer(FromContext(ctx)).Sprintf(key)
}

func buildCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(Default()))
	for key, ar := range arabic {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Arabic, key, ar)
	}
	return b
}
