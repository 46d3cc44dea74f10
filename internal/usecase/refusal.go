package usecase

import "strings"

// refusalPhrases are the Spanish phrasings the text model uses when it
// declines to write a roast. Matched case-insensitively as substrings.
var refusalPhrases = []string{
	"me disculpo",
	"no me siento cómodo",
	"no puedo burlarme",
	"no puedo generar",
	"no puedo crear",
	"no puedo proporcionar",
	"no puedo cumplir",
	"no es apropiado",
	"va en contra de mis valores",
	"no es ético",
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
