package orchestrator

import (
	"fmt"

	"github.com/ashureev/vital-labs/internal/persona"
)

var defaultNames = map[string]string{
	"pt": "querido(a)",
	"en": "friend",
	"es": "amigo(a)",
}

// FallbackMessage renders the canned greeting used when no provider answers.
func FallbackMessage(locale string, p persona.Persona, firstName string) string {
	info := p.Describe()
	lang := BaseLanguage(locale)
	if firstName == "" {
		firstName = defaultNames[lang]
	}
	switch lang {
	case "en":
		return fmt.Sprintf("%s Hi %s! I'm %s. How can I help you today? 💚", info.Avatar, firstName, info.Name)
	case "es":
		return fmt.Sprintf("%s ¡Hola %s! Soy %s. ¿Cómo puedo ayudarte hoy? 💚", info.Avatar, firstName, info.Name)
	default:
		return fmt.Sprintf("%s Olá %s! Sou %s %s. Como posso ajudar você hoje? 💚", info.Avatar, firstName, info.Article, info.Name)
	}
}
