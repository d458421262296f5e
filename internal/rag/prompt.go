package rag

import (
	"fmt"
	"strings"

	"github.com/bull/semantic-search/internal/storage"
)

const (
	contextHeader = "Based on the following relevant documents:\n\n"
	missingText   = "N/A"

	// maxHistoryTurns bounds how much prior conversation goes into a chat prompt.
	maxHistoryTurns = 10
)

// Turn is one prior exchange of a chat conversation.
type Turn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// BuildContext numbers each hit's text, in rank order, under a fixed header.
func BuildContext(hits []*storage.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)
	for i, hit := range hits {
		text := missingText
		if hit.Chunk != nil && hit.Text != "" {
			text = hit.Text
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
	}
	return sb.String()
}

// BuildPrompt appends the literal question and the answering instruction to the context.
func BuildPrompt(context, query string) string {
	return fmt.Sprintf("%s\n\nQuestion: %s\n\nAnswer based on the documents above:", context, query)
}

// BuildChatPrompt is BuildPrompt with the most recent turns placed between the
// context and the question.
func BuildChatPrompt(context string, history []Turn, message string) string {
	if len(history) == 0 {
		return BuildPrompt(context, message)
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var sb strings.Builder
	sb.WriteString(context)
	sb.WriteString("\n\nConversation so far:\n")
	for _, turn := range history {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.User, turn.Assistant)
	}
	fmt.Fprintf(&sb, "\nQuestion: %s\n\nAnswer based on the documents above:", message)
	return sb.String()
}
