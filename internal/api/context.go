package api

import (
	"context"
)

// languageContextKey is the context key for the negotiated response language.
type languageContextKey struct{}

// WithLanguage returns a new context with the response language attached.
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, languageContextKey{}, lang)
}

// LanguageFromContext returns the negotiated language, or fallback when none
// was set.
func LanguageFromContext(ctx context.Context, fallback string) string {
	lang, ok := ctx.Value(languageContextKey{}).(string)
	if !ok || lang == "" {
		return fallback
	}
	return lang
}
