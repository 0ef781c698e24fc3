package rag

import (
	"fmt"
	"strings"

	"github.com/bull/docchat/internal/generation"
	"github.com/bull/docchat/internal/model"
)

// MaxHistoryTurns bounds how many earlier messages are replayed to the model.
const MaxHistoryTurns = 10

const sourceSeparator = "\n\n---\n\n"

const groundedTemplate = `You are a document assistant. Answer the user's question using ONLY the numbered sources below.

Rules:
- Use only information found in the sources. Do not use outside knowledge.
- Place a citation marker such as [1] immediately after every claim a source supports.
- A claim supported by several sources may carry several markers, for example [1][3].
- If the sources do not contain the answer, say clearly that the information was not found in the documents.

Sources:

%s`

const noRelevantMatchTemplate = `You are a document assistant. The user has uploaded documents, but none of them contain passages relevant to this question.

Tell the user that no relevant information was found in their documents and suggest rephrasing the question or uploading a document that covers the topic.
Do not answer from outside knowledge.`

const noDocumentsTemplate = `You are a document assistant. The user has not uploaded any processed documents yet.

Ask the user to upload a document so their questions can be answered from it.
Do not answer the question from outside knowledge.`

// Assemble builds the generation prompt for question. The template follows the
// retrieval mode; history is trimmed to the last MaxHistoryTurns messages.
func Assemble(r *Retrieval, history []model.Message, question string) generation.Prompt {
	var system string
	switch {
	case r == nil || r.Mode == ModeNoDocuments:
		system = noDocumentsTemplate
	case len(r.Sources) > 0:
		system = fmt.Sprintf(groundedTemplate, FormatSources(r.Sources))
	default:
		system = noRelevantMatchTemplate
	}

	return generation.Prompt{System: system, History: historyLines(history), Question: question}
}

// FormatSources renders sources as "[Source n] (filename):" blocks in number order.
func FormatSources(sources []model.Source) string {
	blocks := make([]string, len(sources))
	for i, s := range sources {
		blocks[i] = fmt.Sprintf("[Source %d] (%s):\n%s", s.Number, s.Filename, s.Content)
	}
	return strings.Join(blocks, sourceSeparator)
}

// FormatHistory renders the last MaxHistoryTurns messages as "Role: content" lines.
func FormatHistory(history []model.Message) string {
	return strings.Join(historyLines(history), "\n")
}

func historyLines(history []model.Message) []string {
	if len(history) > MaxHistoryTurns {
		history = history[len(history)-MaxHistoryTurns:]
	}
	if len(history) == 0 {
		return nil
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, roleLabel(m.Role)+": "+m.Content)
	}
	return lines
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleUser:
		return "User"
	case model.RoleAssistant:
		return "Assistant"
	}
	s := string(r)
	if s == "" {
		return "Unknown"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
