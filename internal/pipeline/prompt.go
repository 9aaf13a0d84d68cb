//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"fmt"
	"strings"

	"github.com/ragworks/rag-chat-server/internal/llm"
)

// systemPrompt instructs the model to answer strictly from the provided
// context and to cite snippets inline.
const systemPrompt = `You are a focused research assistant for a retrieval-augmented generation (RAG) system.

You MUST:
- Answer the user's question using ONLY the provided context snippets.
- Treat each context snippet as a citation, referenced inline as [1], [2], etc.
- Prefer concise, clear explanations over long essays.
- Never fabricate facts that are not supported by the context.

If the context is insufficient to answer the question:
- Say that you do not know based on the current context.
- Suggest that the caller enable or use web search fallback for a more complete answer.`

const userPromptTemplate = `You are given context snippets retrieved from a vector store and optionally from web search.

Each snippet is numbered like [1], [2], etc. Use these numbers to cite sources inline in your answer.

Context:
%s

User question:
%s

Instructions:
- Use the context to answer the question.
- Use inline citations like [1], [2] whenever you rely on a snippet.
- If you cannot answer from the context, say so explicitly and recommend using web search fallback.`

// buildContext formats the sources into a numbered context block. Each
// snippet renders as a header line, an optional URL line, and the chunk
// text.
func buildContext(sources []Snippet) string {
	var lines []string
	for i, src := range sources {
		label := src.Source
		if label == "" {
			label = "unknown"
		}

		header := fmt.Sprintf("[%d] (%s)", i+1, label)
		if src.Title != "" {
			header += " " + src.Title
		}

		lines = append(lines, header)
		if src.URL != "" {
			lines = append(lines, src.URL)
		}
		if src.ChunkText != "" {
			lines = append(lines, src.ChunkText)
		}
	}
	return strings.Join(lines, "\n\n")
}

// buildMessages assembles the full message sequence for the completion
// provider: system prompt, prior history, then the question wrapped with
// the numbered context.
func buildMessages(history []Message, question string, sources []Snippet) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})

	for _, m := range history {
		if m.Content == "" {
			continue
		}
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	prompt := fmt.Sprintf(userPromptTemplate, buildContext(sources), question)
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	return messages
}
