// Package persona decides which assistant voice answers a message.
package persona

import "strings"

// Persona is an assistant voice.
type Persona string

const (
	Nutrition Persona = "nutrition"
	Medical   Persona = "medical"
)

// Default is used when detection finds nothing specific.
const Default = Nutrition

// Info carries the presentation details of a persona.
type Info struct {
	Persona     Persona
	Name        string // "Sofia"
	Avatar      string // "🥗"
	Article     string // Portuguese article used in greetings ("a" / "o")
	Specialty   string
	DisplayName string // "Sofia 🥗"
}

var catalog = map[Persona]Info{
	Nutrition: {
		Persona:     Nutrition,
		Name:        "Sofia",
		Avatar:      "🥗",
		Article:     "a",
		Specialty:   "nutricionista virtual",
		DisplayName: "Sofia 🥗",
	},
	Medical: {
		Persona:     Medical,
		Name:        "Dr. Vital",
		Avatar:      "🩺",
		Article:     "o",
		Specialty:   "médico virtual",
		DisplayName: "Dr. Vital 🩺",
	},
}

// Describe returns the presentation details, falling back to the default persona.
func (p Persona) Describe() Info {
	if info, ok := catalog[p]; ok {
		return info
	}
	return catalog[Default]
}

// IsValid reports whether p is a known persona.
func (p Persona) IsValid() bool {
	_, ok := catalog[p]
	return ok
}

// Parse maps user-supplied override strings to a persona. Aliases used by the
// web client ("sofia", "drvital", "dr_vital") are accepted. Unknown values
// return "" and false.
func Parse(s string) (Persona, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nutrition", "sofia":
		return Nutrition, true
	case "medical", "drvital", "dr_vital", "dr-vital", "dr.vital":
		return Medical, true
	default:
		return "", false
	}
}
