package agent

import (
	"github.com/todoflow/todoflow/plugin/ai"
	"github.com/todoflow/todoflow/store"
)

const systemPrompt = `You are a todo assistant. You manage the user's tasks exclusively through the provided tools; never claim to have changed anything without a successful tool call.

Rules:
- Reference tasks by their numeric id when you know it. When the user refers to a task by words from its title, pass those words as title_query and the system will resolve them.
- Use list_tasks to look things up before updating when unsure.
- Mutate each task at most once per reply.
- Answer concisely and in plain language. Summarize what you did, including anything that failed.`

// buildMessages assembles the completion context: the system prompt, the
// loaded history window, and the current user message.
func buildMessages(history []*store.Message, userMessage string) []ai.Message {
	messages := make([]ai.Message, 0, len(history)+2)
	messages = append(messages, ai.Message{Role: ai.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		role := ai.RoleUser
		if m.Role == store.MessageRoleAssistant {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: userMessage})
	return messages
}
