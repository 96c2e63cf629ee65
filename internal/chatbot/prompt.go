package chatbot

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/newsrag/models"
)

const systemInstruction = "You are a helpful news assistant. "

// BuildPrompt assembles the generation prompt: instruction, chat history,
// retrieved articles and the raw query, in that order.
func BuildPrompt(history []models.ChatMessage, articles []models.Article, query string) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\nChat History:\n")
	b.WriteString(HistoryBlock(history))
	b.WriteString("\nRelevant News:\n")
	b.WriteString(ContextBlock(articles))
	b.WriteString("\nUser: ")
	b.WriteString(query)
	b.WriteString("\nAnswer:")
	return b.String()
}

// HistoryBlock renders one "role: content" line per message.
func HistoryBlock(history []models.ChatMessage) string {
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}

// ContextBlock renders retrieved articles separated by blank lines.
func ContextBlock(articles []models.Article) string {
	blocks := make([]string, len(articles))
	for i, a := range articles {
		blocks[i] = fmt.Sprintf("Title: %s\nContent: %s\nURL: %s", a.Title, a.Content, a.URL)
	}
	return strings.Join(blocks, "\n\n")
}
