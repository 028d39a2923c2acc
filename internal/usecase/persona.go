package usecase

import (
	"fmt"
	"strings"

	"portfolio-relay/internal/domain"
)

// Persona holds the static facts the assistant speaks from. It is assembled
// from configuration at startup and never supplied by the caller.
type Persona struct {
	AssistantName string
	OwnerName     string
	OwnerEmail    string
	Education     string
	Skills        string
	Goals         string
}

// SystemMessage renders the fixed system prompt that is prepended to every
// outbound conversation.
func (p Persona) SystemMessage() domain.ChatMessage {
	return domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: buildPersonaPrompt(p),
	}
}

func buildPersonaPrompt(p Persona) string {
	return strings.Join([]string{
		fmt.Sprintf("You are %s, an AI assistant for %s's portfolio website.", normalizePromptInput(p.AssistantName), normalizePromptInput(p.OwnerName)),
		"",
		"Facts about the portfolio owner:",
		"Name: " + normalizePromptInput(p.OwnerName),
		"Email: " + normalizePromptInput(p.OwnerEmail),
		"Education: " + normalizePromptInput(p.Education),
		"Skills: " + normalizePromptInput(p.Skills),
		"Goals: " + normalizePromptInput(p.Goals),
		"",
		"Behavior Rules:",
		behaviorRules(),
	}, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only questions about the portfolio owner and their work.",
		"2) Keep responses friendly, professional and concise.",
		"3) Use only the facts provided above as sources.",
		"4) If required information is unavailable, say so and suggest contacting the owner by email.",
	}, "\n")
}

// normalizePromptInput collapses whitespace so multi-line config values do not
// distort the prompt layout.
func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
