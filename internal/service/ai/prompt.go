package ai

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/nutrigraph/nutribot/backend/internal/model/persona"
)

// queryTemplate places the persona instruction ahead of the raw user query.
// Both are template values, so user text is inserted verbatim.
const queryTemplate = "{instruction}\n\nUser query: {query}"

const defaultInstruction = "You are a helpful food and nutrition assistant. Be friendly, informative, and concise."

// newPromptTemplate builds the single-message chat template.
func newPromptTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.UserMessage(queryTemplate),
	)
}

// buildPromptInput binds the template variables for one query.
func buildPromptInput(p persona.Persona, query string) map[string]any {
	instruction := p.Instruction
	if instruction == "" {
		instruction = defaultInstruction
	}
	return map[string]any{
		"instruction": instruction,
		"query":       query,
	}
}
