package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ashureev/vital-labs/internal/provider"
	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
	language.Spanish,
}

var matcher = language.NewMatcher(supported)

// BaseLanguage maps a locale string such as "pt-BR" or "en_US" to the closest
// supported base ("pt", "en", "es"), defaulting to Portuguese.
func BaseLanguage(locale string) string {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return "pt"
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return "pt"
	}
	base, _ := supported[idx].Base()
	return base.String()
}

var stopwords = map[string]map[string]struct{}{
	"pt": setOf("de", "não", "nao", "você", "voce", "está", "seu", "sua", "mais", "muito", "isso", "uma", "com", "para", "também", "são", "hoje", "ajudar", "olá"),
	"en": setOf("the", "and", "you", "your", "is", "are", "to", "of", "with", "this", "that", "it", "for", "can", "today", "help", "hello"),
	"es": setOf("el", "los", "las", "usted", "tu", "muy", "esto", "pero", "está", "también", "hoy", "ayudar", "hola", "eres", "puedo"),
}

func setOf(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// minStopwordHits is the evidence needed before a reply is judged to be in
// the wrong language. Short replies always pass.
const minStopwordHits = 3

// MatchesLocale reports whether text plausibly is in the locale's language.
func MatchesLocale(text, locale string) bool {
	target := BaseLanguage(locale)
	scores := map[string]int{}
	total := 0
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		for lang, words := range stopwords {
			if _, ok := words[w]; ok {
				scores[lang]++
				total++
			}
		}
	}
	if total < minStopwordHits {
		return true
	}
	for lang, n := range scores {
		if lang != target && n > scores[target] {
			return false
		}
	}
	return true
}

var languageNames = map[string]string{
	"pt": "Brazilian Portuguese",
	"en": "English",
	"es": "Spanish",
}

// translate makes one best-effort call on the provider that produced text.
func (o *Orchestrator) translate(ctx context.Context, entry Entry, text, locale string) (string, bool) {
	lang := languageNames[BaseLanguage(locale)]
	out, a := o.attempt(ctx, entry, provider.Request{
		System: fmt.Sprintf(
			"Translate the user's text to %s. Keep emojis, names and formatting. Return only the translated text.", lang),
		Message:     text,
		Model:       entry.Model,
		MaxTokens:   entry.MaxTokens,
		Temperature: 0,
	})
	if a.Failure != "" {
		o.logger.Warn("Reply translation failed, keeping original", "provider", a.ProviderID, "failure", a.Failure)
		return "", false
	}
	return out, true
}
