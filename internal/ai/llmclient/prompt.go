package llmclient

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const maxAboutRunes = 2000

// SystemPrompt frames the model for chat-style providers.
const SystemPrompt = "You are a career analyst who writes concise professional summaries of LinkedIn profiles."

// ProfilePrompt renders the user prompt for a profile summary.
func ProfilePrompt(p models.ProfileFields) string {
	var b strings.Builder
	b.WriteString("Analyze this LinkedIn profile and create a concise professional summary:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Current Role: %s at %s\n", p.CurrentTitle, p.CurrentCompany)
	fmt.Fprintf(&b, "Location: %s\n", p.Location)
	fmt.Fprintf(&b, "Industry: %s\n", p.Industry)
	fmt.Fprintf(&b, "About: %s\n", Truncate(p.About, maxAboutRunes))
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))

	b.WriteString("\nExperience:\n")
	for _, e := range p.Experience {
		end := e.EndDate
		if end == "" && e.IsCurrent {
			end = "Present"
		}
		fmt.Fprintf(&b, "- %s at %s (%s - %s)\n", e.Title, e.Company, e.StartDate, end)
	}

	b.WriteString("\nEducation:\n")
	for _, e := range p.Education {
		fmt.Fprintf(&b, "- %s in %s from %s\n", e.Degree, e.Field, e.School)
	}

	b.WriteString("\nProvide a 2-3 sentence professional summary highlighting key strengths, career progression, and potential value to organizations.")
	return b.String()
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// CleanSummary trims model output and rejects empty answers.
func CleanSummary(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty summary", ErrInvalidResponse)
	}
	return s, nil
}
