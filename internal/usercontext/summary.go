package usercontext

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/vital-labs/internal/domain"
)

// DefaultMaxSummaryRunes bounds the digest placed in prompts.
const DefaultMaxSummaryRunes = 4000

const (
	maxActiveGoals       = 5
	maxMedicalDocs       = 3
	maxConversationLines = 5
	conversationRunes    = 150
	maxKnowledgeEntries  = 5
	knowledgeRunes       = 100
	nutritionDays        = 7
	checkinEntries       = 14
)

// Summarize condenses uc into a bounded digest of derived signals. It is
// pure: it reads only uc and never lists raw records.
func Summarize(uc *domain.UserContext, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxSummaryRunes
	}
	if uc == nil {
		return ""
	}

	var lines []string
	add := func(s string) {
		if s != "" {
			lines = append(lines, s)
		}
	}

	add(profileLine(uc))
	add(physicalLine(uc))
	add(weightLine(uc))
	add(nutritionLine(uc))
	add(checkinLine(uc))
	add(goalsLine(uc))
	add(anamnesisLine(uc))
	add(exerciseLine(uc))
	add(challengesLine(uc))
	add(pointsLine(uc))
	add(medicalDocsLine(uc))
	add(conversationLines(uc))
	add(knowledgeLines(uc))
	add(completenessLine(uc))

	return truncateRunes(strings.Join(lines, "\n"), maxRunes)
}

func profileLine(uc *domain.UserContext) string {
	p := uc.Profile()
	if p == nil {
		return ""
	}
	parts := []string{"Nome: " + p.FullName}
	if p.Gender != "" {
		parts = append(parts, "Gênero: "+p.Gender)
	}
	if p.City != "" {
		parts = append(parts, "Cidade: "+p.City)
	}
	return "PERFIL: " + strings.Join(parts, " | ")
}

func physicalLine(uc *domain.UserContext) string {
	rec, ok := uc.Latest(domain.DomainPhysicalData)
	if !ok {
		return ""
	}
	pd, _ := rec.Data.(*domain.PhysicalData)
	if pd == nil {
		return ""
	}
	var parts []string
	if pd.HeightCM > 0 {
		parts = append(parts, fmt.Sprintf("Altura %.0f cm", pd.HeightCM))
	}
	if pd.Age > 0 {
		parts = append(parts, fmt.Sprintf("Idade %d", pd.Age))
	}
	if pd.Sex != "" {
		parts = append(parts, "Sexo "+pd.Sex)
	}
	if pd.ActivityLevel != "" {
		parts = append(parts, "Atividade "+pd.ActivityLevel)
	}
	if len(parts) == 0 {
		return ""
	}
	return "DADOS FÍSICOS: " + strings.Join(parts, " | ")
}

func weightLine(uc *domain.UserContext) string {
	records := uc.Records(domain.DomainWeightHistory)
	var weights []*domain.WeightMeasurement
	for _, r := range records {
		if w, ok := r.Data.(*domain.WeightMeasurement); ok && w.WeightKG > 0 {
			weights = append(weights, w)
		}
	}
	if len(weights) == 0 {
		return ""
	}
	latest := weights[0]
	parts := []string{fmt.Sprintf("Atual %.1f kg", latest.WeightKG)}
	if len(weights) > 1 {
		delta := latest.WeightKG - weights[1].WeightKG
		parts = append(parts, fmt.Sprintf("variação %+.1f kg desde a medição anterior", delta))
	}
	if latest.BMI > 0 {
		parts = append(parts, fmt.Sprintf("IMC %.1f", latest.BMI))
	}
	if latest.BodyFatPct > 0 {
		parts = append(parts, fmt.Sprintf("Gordura %.1f%%", latest.BodyFatPct))
	}
	if latest.MuscleMassKG > 0 {
		parts = append(parts, fmt.Sprintf("Massa muscular %.1f kg", latest.MuscleMassKG))
	}
	if latest.MetabolicRisk != "" {
		parts = append(parts, "Risco metabólico "+latest.MetabolicRisk)
	}
	return fmt.Sprintf("PESO (%d medições): %s", len(weights), strings.Join(parts, " | "))
}

// nutritionLine averages daily calorie totals over the most recent days
// that have at least one meal logged.
func nutritionLine(uc *domain.UserContext) string {
	totals := map[string]float64{}
	var days []string
	for _, r := range uc.Records(domain.DomainNutrition) {
		n, ok := r.Data.(*domain.NutritionLog)
		if !ok {
			continue
		}
		key := r.RecordedAt.Format("2006-01-02")
		if _, seen := totals[key]; !seen {
			days = append(days, key)
		}
		totals[key] += n.Calories
	}
	if len(days) == 0 {
		return ""
	}
	sort.Sort(sort.Reverse(sort.StringSlice(days)))
	if len(days) > nutritionDays {
		days = days[:nutritionDays]
	}
	sum := 0.0
	for _, d := range days {
		sum += totals[d]
	}
	return fmt.Sprintf("NUTRIÇÃO: média diária de %.0f kcal (últimos %d dias com registro)", sum/float64(len(days)), len(days))
}

func checkinLine(uc *domain.UserContext) string {
	var stressSum, energySum, stressN, energyN int
	seen := 0
	for _, r := range uc.Records(domain.DomainDailyResponses) {
		if seen >= checkinEntries {
			break
		}
		d, ok := r.Data.(*domain.DailyResponse)
		if !ok {
			continue
		}
		seen++
		if d.StressLevel > 0 {
			stressSum += d.StressLevel
			stressN++
		}
		if d.EnergyLevel > 0 {
			energySum += d.EnergyLevel
			energyN++
		}
	}
	var parts []string
	if stressN > 0 {
		parts = append(parts, fmt.Sprintf("estresse médio %.1f/10", float64(stressSum)/float64(stressN)))
	}
	if energyN > 0 {
		parts = append(parts, fmt.Sprintf("energia média %.1f/10", float64(energySum)/float64(energyN)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "CHECK-IN DIÁRIO: " + strings.Join(parts, " | ")
}

func goalsLine(uc *domain.UserContext) string {
	var active []string
	for _, r := range uc.Records(domain.DomainGoals) {
		g, ok := r.Data.(*domain.Goal)
		if !ok || !g.IsActive() {
			continue
		}
		item := g.Title
		if g.TargetValue > 0 {
			item += fmt.Sprintf(" (%.0f/%.0f %s)", g.CurrentValue, g.TargetValue, g.Unit)
		}
		active = append(active, strings.TrimSpace(item))
		if len(active) == maxActiveGoals {
			break
		}
	}
	if len(active) == 0 {
		return ""
	}
	return "METAS ATIVAS: " + strings.Join(active, "; ")
}

func anamnesisLine(uc *domain.UserContext) string {
	rec, ok := uc.Latest(domain.DomainAnamnesis)
	if !ok {
		return ""
	}
	a, _ := rec.Data.(*domain.Anamnesis)
	if a == nil {
		return ""
	}
	var parts []string
	if len(a.ChronicDiseases) > 0 {
		parts = append(parts, "doenças crônicas: "+strings.Join(a.ChronicDiseases, ", "))
	}
	if len(a.Medications) > 0 {
		parts = append(parts, "medicamentos: "+strings.Join(a.Medications, ", "))
	}
	if len(a.Allergies) > 0 {
		parts = append(parts, "alergias: "+strings.Join(a.Allergies, ", "))
	}
	if a.SleepQuality > 0 {
		parts = append(parts, fmt.Sprintf("qualidade do sono %d/10", a.SleepQuality))
	}
	if a.MainGoal != "" {
		parts = append(parts, "objetivo principal: "+a.MainGoal)
	}
	if len(parts) == 0 {
		return "ANAMNESE: preenchida"
	}
	return "ANAMNESE: " + strings.Join(parts, "; ")
}

func exerciseLine(uc *domain.UserContext) string {
	records := uc.Records(domain.DomainExercise)
	if len(records) == 0 {
		return ""
	}
	line := fmt.Sprintf("EXERCÍCIOS: %d registros", len(records))
	if e, ok := records[0].Data.(*domain.Exercise); ok && e.Activity != "" {
		line += fmt.Sprintf("; último: %s", e.Activity)
		if e.DurationMin > 0 {
			line += fmt.Sprintf(" (%d min)", e.DurationMin)
		}
	}
	return line
}

func challengesLine(uc *domain.UserContext) string {
	records := uc.Records(domain.DomainChallengeParticipations)
	if len(records) == 0 {
		return ""
	}
	active := 0
	for _, r := range records {
		if c, ok := r.Data.(*domain.ChallengeParticipation); ok && c.IsActive() {
			active++
		}
	}
	return fmt.Sprintf("DESAFIOS: %d ativos de %d", active, len(records))
}

func pointsLine(uc *domain.UserContext) string {
	rec, ok := uc.Latest(domain.DomainPoints)
	if !ok {
		return ""
	}
	p, _ := rec.Data.(*domain.UserPoints)
	if p == nil {
		return ""
	}
	return fmt.Sprintf("GAMIFICAÇÃO: %d pontos | nível %d | sequência de %d dias", p.TotalPoints, p.Level, p.CurrentStreak)
}

func medicalDocsLine(uc *domain.UserContext) string {
	var docs []string
	for _, r := range uc.Records(domain.DomainMedicalDocuments) {
		d, ok := r.Data.(*domain.MedicalDocument)
		if !ok {
			continue
		}
		item := d.Title
		if d.Type != "" {
			item += " [" + d.Type + "]"
		}
		docs = append(docs, item)
		if len(docs) == maxMedicalDocs {
			break
		}
	}
	if len(docs) == 0 {
		return ""
	}
	return "DOCUMENTOS MÉDICOS: " + strings.Join(docs, "; ")
}

// conversationLines shows the latest exchanges oldest first.
func conversationLines(uc *domain.UserContext) string {
	records := uc.Records(domain.DomainConversations)
	if len(records) > maxConversationLines {
		records = records[:maxConversationLines]
	}
	var out []string
	for i := len(records) - 1; i >= 0; i-- {
		c, ok := records[i].Data.(*domain.ConversationRecord)
		if !ok {
			continue
		}
		who := "usuário"
		if c.Role == domain.RoleAssistant {
			who = "assistente"
		}
		out = append(out, fmt.Sprintf("- %s: %s", who, truncateRunes(oneLine(c.Content), conversationRunes)))
	}
	if len(out) == 0 {
		return ""
	}
	return "CONVERSAS RECENTES:\n" + strings.Join(out, "\n")
}

func knowledgeLines(uc *domain.UserContext) string {
	var out []string
	for _, r := range uc.Records(domain.DomainKnowledgeBase) {
		k, ok := r.Data.(*domain.KnowledgeEntry)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("- %s: %s", k.Topic, truncateRunes(oneLine(k.Content), knowledgeRunes)))
		if len(out) == maxKnowledgeEntries {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return "BASE DE CONHECIMENTO:\n" + strings.Join(out, "\n")
}

func completenessLine(uc *domain.UserContext) string {
	c := uc.Completeness
	line := fmt.Sprintf("COMPLETUDE DOS DADOS: %d%% (%d registros)", c.Percentage, uc.TotalDataPoints)
	if len(c.MissingDomains) > 0 {
		names := make([]string, len(c.MissingDomains))
		for i, id := range c.MissingDomains {
			names[i] = string(id)
		}
		line += " | faltando: " + strings.Join(names, ", ")
	}
	return line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most n runes, marking the cut with an ellipsis.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-1]) + "…"
}
