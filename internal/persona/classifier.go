package persona

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Classification is the routing decision for one message.
type Classification struct {
	Persona          Persona
	FastPathEligible bool
}

// Classifier routes messages to a persona. It is pure: the same inputs always
// produce the same classification and nothing outside the message is read.
type Classifier struct {
	maxFastRunes int
}

// NewClassifier creates a classifier. Messages shorter than maxFastRunes
// without digits or tracking vocabulary are treated as simple.
func NewClassifier(maxFastRunes int) *Classifier {
	if maxFastRunes <= 0 {
		maxFastRunes = 20
	}
	return &Classifier{maxFastRunes: maxFastRunes}
}

// medicalTerms are folded single words that signal a clinical question.
var medicalTerms = map[string]struct{}{
	"dor": {}, "dores": {}, "doi": {}, "doendo": {}, "sintoma": {}, "sintomas": {},
	"febre": {}, "pressao": {}, "exame": {}, "exames": {}, "remedio": {}, "remedios": {},
	"medicamento": {}, "medicamentos": {}, "medicacao": {}, "diagnostico": {}, "doenca": {},
	"tontura": {}, "nausea": {}, "enjoo": {}, "vomito": {}, "peito": {}, "coracao": {},
	"diabetes": {}, "colesterol": {}, "glicose": {}, "glicemia": {}, "consulta": {},
	"medico": {}, "alergia": {}, "infeccao": {}, "inflamacao": {},
	"tosse": {}, "sangue": {}, "hipertensao": {}, "arritmia": {}, "palpitacao": {},
	"pain": {}, "symptom": {}, "symptoms": {}, "fever": {}, "medication": {},
	"diagnosis": {}, "doctor": {}, "chest": {},
}

// medicalPhrases are folded multi-word signals.
var medicalPhrases = []string{"falta de ar", "dor de cabeca", "pressao alta", "exame de sangue"}

// trackingTerms disqualify short messages from the fast path: they carry
// data the full context should see.
var trackingTerms = []string{"comi", "bebi", "almocei", "jantei", "tomei", "cafe", "lanche", "caloria", "peso"}

var simplePatterns = func() []*regexp.Regexp {
	alternatives := []string{
		`oi+|ola|hey|hi|hello|e ai|eai|opa|fala|alo`,
		`bom dia|boa tarde|boa noite`,
		`tudo bem|como vai|como esta|beleza|suave|de boa`,
		`obrigad[oa]|valeu|thanks|vlw|brigad[oa]|tmj`,
		`tchau|bye|ate mais|ate logo|flw|falou|xau`,
		`ok|okay|certo|entendi|blz|show|top|massa|legal`,
		`sim|nao|s|n|ss|nn`,
		`(ha)+|(he)+|(rs)+|k{3,}|lol`,
	}
	out := make([]*regexp.Regexp, 0, len(alternatives))
	for _, alt := range alternatives {
		out = append(out, regexp.MustCompile(`^(`+alt+`)[\s!.?,]*$`))
	}
	return out
}()

// Classify picks the persona and fast-path eligibility for message. A valid
// override wins over detection. The medical persona is never fast-pathed.
func (c *Classifier) Classify(message string, override Persona) Classification {
	folded := strings.TrimSpace(fold(message))

	p := Default
	switch {
	case override.IsValid():
		p = override
	case isMedical(folded):
		p = Medical
	}

	return Classification{
		Persona:          p,
		FastPathEligible: p == Nutrition && c.isSimple(folded),
	}
}

func isMedical(folded string) bool {
	for _, w := range words(folded) {
		if _, ok := medicalTerms[w]; ok {
			return true
		}
	}
	for _, phrase := range medicalPhrases {
		if strings.Contains(folded, phrase) {
			return true
		}
	}
	return false
}

func (c *Classifier) isSimple(folded string) bool {
	if folded == "" {
		return false
	}
	for _, re := range simplePatterns {
		if re.MatchString(folded) {
			return true
		}
	}
	if onlyEmojiOrPunct(folded) {
		return true
	}
	if utf8.RuneCountInString(folded) >= c.maxFastRunes {
		return false
	}
	if strings.IndexFunc(folded, unicode.IsDigit) >= 0 {
		return false
	}
	for _, term := range trackingTerms {
		if strings.Contains(folded, term) {
			return false
		}
	}
	return true
}

func onlyEmojiOrPunct(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
