package usecase

import (
	"fmt"
	"slices"
	"strings"

	"slack-roaster/internal/domain"
)

const (
	noAttributesLine = "- No specific attributes available\n"
	noTicketsLine    = "- No tickets available\n"
	noCommentsText   = "No Comments"
)

func buildRoastPrompt(attributes map[string]string, tickets []domain.Ticket) string {
	return strings.Join([]string{
		"Eres un comediante que encuentra el lado divertido de la otra persona. Usas",
		"un conjunto de descripciones de tareas asignadas en un ambiente de desarrollo de software.",
		"Usa estas características para hablar de la persona:",
		"",
		formatAttributes(attributes),
		"Haz bromas ingeniosas de las descripciones de las tareas que se encuentran en:",
		"",
		formatTickets(tickets),
		"No superes más de 200 palabras, utiliza lenguaje técnico y sarcástico.",
		"Agrega un emoji al final.",
		"",
		"Por favor, responde en español.",
	}, "\n")
}

// formatAttributes renders one "- key: value" line per attribute, sorted by
// key so the prompt is stable across invocations.
func formatAttributes(attributes map[string]string) string {
	if len(attributes) == 0 {
		return noAttributesLine
	}
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, attributes[k])
	}
	return b.String()
}

func formatTickets(tickets []domain.Ticket) string {
	if len(tickets) == 0 {
		return noTicketsLine
	}
	var b strings.Builder
	for _, t := range tickets {
		comments := t.Comments
		if comments == "" {
			comments = noCommentsText
		}
		fmt.Fprintf(&b, "- Ticket %s:\n  %s\n\n", t.ID(), comments)
	}
	return b.String()
}
