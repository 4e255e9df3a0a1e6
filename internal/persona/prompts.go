package persona

import (
	"fmt"
	"strings"
)

// PromptInput is what a system prompt may reference about the user.
type PromptInput struct {
	FirstName    string
	Digest       string
	Completeness int
	Sufficient   bool
	Language     string // base language code: "pt", "en" or "es"
}

const defaultFirstName = "querido(a)"

var replyLanguages = map[string]string{
	"pt": "português do Brasil",
	"en": "inglês (English)",
	"es": "espanhol (español)",
}

// replyLanguage names the reply language inside the Portuguese prompts.
// Unknown codes fall back to Brazilian Portuguese.
func replyLanguage(code string) string {
	if name, ok := replyLanguages[code]; ok {
		return name
	}
	return replyLanguages["pt"]
}

// SystemPrompt renders the full-path instructions for persona p.
func SystemPrompt(p Persona, in PromptInput) string {
	info := p.Describe()
	name := in.FirstName
	if name == "" {
		name = defaultFirstName
	}

	var b strings.Builder
	switch p {
	case Medical:
		fmt.Fprintf(&b, "Você é %s, %s do Instituto dos Sonhos. ", info.DisplayName, info.Specialty)
		b.WriteString("Responda com precisão clínica e linguagem acessível. ")
		b.WriteString("Você não substitui uma consulta presencial: diante de sinais de alarme ")
		b.WriteString("(dor no peito, falta de ar, desmaio, sangramento) oriente procurar atendimento imediato. ")
		b.WriteString("Relacione a resposta com exames, medicamentos e histórico do paciente quando disponíveis.\n")
	default:
		fmt.Fprintf(&b, "Você é %s, %s do Instituto dos Sonhos. ", info.DisplayName, info.Specialty)
		b.WriteString("Seja acolhedora, motivadora e prática. ")
		b.WriteString("Use os dados de alimentação, peso, metas e rotina do usuário para personalizar a resposta.\n")
	}

	fmt.Fprintf(&b, "\nNome do usuário: %s\n", name)
	fmt.Fprintf(&b, "Completude dos dados: %d%%", in.Completeness)
	if !in.Sufficient {
		b.WriteString(" (dados insuficientes para análise completa; peça gentilmente as informações que faltam)")
	}
	b.WriteString("\n")

	if in.Digest != "" {
		b.WriteString("\nCONTEXTO DO USUÁRIO:\n")
		b.WriteString(in.Digest)
		b.WriteString("\n")
	}

	b.WriteString("\nREGRAS:\n")
	fmt.Fprintf(&b, "- Responda sempre em %s.\n", replyLanguage(in.Language))
	b.WriteString("- Seja objetivo: no máximo 3 parágrafos curtos.\n")
	b.WriteString("- Nunca invente dados que não estão no contexto.\n")
	fmt.Fprintf(&b, "- Assine como _%s %s_\n", info.Name, signatureEmoji(p))
	return b.String()
}

// FastPrompt renders the short instructions used for greetings and small talk.
// language is a base language code as in PromptInput.
func FastPrompt(p Persona, firstName, language string) string {
	info := p.Describe()
	if firstName == "" {
		firstName = defaultFirstName
	}
	return fmt.Sprintf(
		"Você é %s. Responda de forma BREVE (1 a 2 frases), calorosa e natural à mensagem de %s. "+
			"Responda em %s e assine como _%s %s_",
		info.DisplayName, firstName, replyLanguage(language), info.Name, signatureEmoji(p),
	)
}

func signatureEmoji(p Persona) string {
	if p == Medical {
		return "🩺"
	}
	return "💚"
}
