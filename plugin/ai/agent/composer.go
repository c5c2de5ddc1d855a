package agent

import (
	"fmt"
	"strings"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/store"
)

// The composer renders turn outcomes as natural language. Raw error codes
// never reach the user; the structured results stay available to API clients.

func clarificationQuestion(query string, candidates []*store.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I found %d tasks matching %q:\n", len(candidates), query)
	for _, t := range candidates {
		line := fmt.Sprintf("- #%d %s", t.ID, t.Title)
		if t.Completed {
			line += " (completed)"
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("Which one did you mean?")
	return b.String()
}

// composeFallback produces the assistant text when the model returned tool
// calls but no closing message. Failures are named, never hidden.
func composeFallback(results []tools.ToolCallResult) string {
	if len(results) == 0 {
		return "I didn't make any changes. Could you rephrase what you'd like me to do?"
	}

	var done, failed []string
	for _, r := range results {
		if r.Status == tools.CallStatusSuccess {
			done = append(done, describeSuccess(r))
		} else {
			failed = append(failed, describeFailure(r))
		}
	}

	var b strings.Builder
	if len(done) > 0 {
		b.WriteString(strings.Join(done, " "))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString(" However, ")
		}
		b.WriteString(strings.Join(failed, " "))
	}
	return b.String()
}

func describeSuccess(r tools.ToolCallResult) string {
	switch r.ToolName {
	case "add_task":
		return "I added the task."
	case "update_task":
		return "I updated the task."
	case "complete_task":
		return "I marked the task as completed."
	case "delete_task":
		return "I deleted the task."
	case "schedule_reminder":
		return "I scheduled the reminder."
	case "suggest_tasks":
		return "I put together some suggestions."
	default:
		return "Done."
	}
}

func describeFailure(r tools.ToolCallResult) string {
	action := actionLabel(r.ToolName)
	switch errors.ErrorCode(r.ErrorCode) {
	case errors.ErrCodeNotFound:
		return fmt.Sprintf("I couldn't %s: I couldn't find that task.", action)
	case errors.ErrCodeNotOwned:
		return fmt.Sprintf("I couldn't %s: that task belongs to someone else.", action)
	case errors.ErrCodeInvalidArguments:
		return fmt.Sprintf("I couldn't %s: some details were missing or invalid.", action)
	default:
		return fmt.Sprintf("I couldn't %s right now. Please try again.", action)
	}
}

func actionLabel(toolName string) string {
	switch toolName {
	case "add_task":
		return "add the task"
	case "update_task":
		return "update the task"
	case "complete_task":
		return "complete the task"
	case "delete_task":
		return "delete the task"
	case "schedule_reminder":
		return "schedule the reminder"
	case "suggest_tasks":
		return "build suggestions"
	case "get_analytics":
		return "compute the analytics"
	case "identify_patterns":
		return "look up your patterns"
	default:
		return "finish that step"
	}
}
