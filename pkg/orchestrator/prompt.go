package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

const nonePlaceholder = "(none)"

// TaskPrompt returns the short task line used both inside the assembled
// prompt and for history logging: the configured idle line for Idle events,
// or the user-prompt template filled with speaker/text for Speech/Chat.
func TaskPrompt(cfg Config, ev InputEvent) string {
	if ev.Source == SourceIdle {
		return cfg.LLMIdlePrompt
	}
	tmpl := cfg.LLMUserPromptTemplate
	tmpl = strings.ReplaceAll(tmpl, "{speaker}", ev.Speaker)
	tmpl = strings.ReplaceAll(tmpl, "{text}", ev.Text)
	return tmpl
}

func formatChatLines(lines []ChatLine) string {
	if len(lines) == 0 {
		return nonePlaceholder
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s: %s", l.User, l.Message))
	}
	return strings.Join(parts, "\n")
}

func formatHistory(history []HistoryEntry) string {
	if len(history) == 0 {
		return nonePlaceholder
	}
	parts := make([]string, 0, len(history))
	for _, h := range history {
		parts = append(parts, fmt.Sprintf("%s: %s", h.Role, h.Text))
	}
	return strings.Join(parts, "\n")
}

func formatLongTermMemory(facts []string) string {
	if len(facts) == 0 {
		return nonePlaceholder
	}
	parts := make([]string, 0, len(facts))
	for _, f := range facts {
		parts = append(parts, "- "+f)
	}
	return strings.Join(parts, "\n")
}

// BuildPrompt assembles the full model prompt in the fixed section order:
// persona; current date/time with weekday; optional core-memory summary
// (omitted entirely when empty); long-term memory; previous chat log;
// conversation history; recent chat log; current task. It returns the
// assembled prompt and the task prompt used for history logging.
func BuildPrompt(cfg Config, ev InputEvent, previous, recent []ChatLine, history []HistoryEntry, longTermFacts []string, coreMemorySummary string, now time.Time) (prompt string, taskPrompt string) {
	taskPrompt = TaskPrompt(cfg, ev)

	var b strings.Builder
	b.WriteString("# System Persona\n")
	b.WriteString(cfg.LLMPersonaPrompt)
	b.WriteString("\n\n# Current Date and Time\n")
	b.WriteString(now.Format("Monday, 2006-01-02 15:04:05"))
	b.WriteString("\n")

	if strings.TrimSpace(coreMemorySummary) != "" {
		b.WriteString("\n# Core Memory (Most Important Information)\n")
		b.WriteString(coreMemorySummary)
		b.WriteString("\n")
	}

	b.WriteString("\n# Long-Term Memory\n")
	b.WriteString(formatLongTermMemory(longTermFacts))

	b.WriteString("\n\n# Previous Live Chat Log\n")
	b.WriteString(formatChatLines(previous))

	b.WriteString("\n\n# Conversation History\n")
	b.WriteString(formatHistory(history))

	b.WriteString("\n\n# Recent Live Chat Log\n")
	b.WriteString(formatChatLines(recent))

	b.WriteString("\n\n# Current Task\n")
	b.WriteString(taskPrompt)
	b.WriteString("\n")

	return b.String(), taskPrompt
}
