package generator

import (
	"regexp"
	"strings"

	"medichat-server/internal/models"
)

var sentenceBreak = regexp.MustCompile(`[.!?]\s+`)

// medicationWarnings maps a medication name to the caution prepended to any
// answer that mentions it.
var medicationWarnings = []struct {
	name    string
	warning string
}{
	{
		name: "ibuprofen",
		warning: "Caution: Nonsteroidal anti-inflammatory drugs (e.g., ibuprofen) may increase blood pressure " +
			"or interact with antihypertensive drugs. Consult your doctor or pharmacist before taking.",
	},
}

func splitSentences(text string) []string {
	var sentences []string
	prev := 0
	for _, loc := range sentenceBreak.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[prev:loc[0]+1])
		prev = loc[1]
	}
	return append(sentences, text[prev:])
}

// collapseRepetition keeps at most two consecutive copies of the same sentence.
func collapseRepetition(text string) string {
	sentences := splitSentences(strings.TrimSpace(text))
	out := make([]string, 0, len(sentences))
	repeats := 0
	for _, s := range sentences {
		if len(out) > 0 && s != "" && s == out[len(out)-1] {
			repeats++
			if repeats < 2 {
				out = append(out, s)
			}
			continue
		}
		repeats = 0
		out = append(out, s)
	}
	return strings.TrimSpace(strings.Join(out, " "))
}

func applyMedicationWarnings(question, answer string, gctx models.ChatContext) string {
	q := strings.ToLower(question)
	meds := strings.ToLower(strings.Join(gctx.Medications, " "))
	for _, w := range medicationWarnings {
		if !strings.Contains(q, w.name) && !strings.Contains(meds, w.name) {
			continue
		}
		if !strings.Contains(answer, w.warning) {
			answer = w.warning + "\n\n" + answer
		}
	}
	return answer
}

// truncateAnswer cuts text longer than limit characters back to the last
// sentence boundary inside the limit.
func truncateAnswer(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, ". "); i >= 0 {
		cut = cut[:i]
	}
	return cut + "."
}
