package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/todoflow/todoflow/internal/errors"
	"github.com/todoflow/todoflow/plugin/ai/agent/tools"
	"github.com/todoflow/todoflow/store"
)

func TestComposeFallbackNeverLeaksErrorCodes(t *testing.T) {
	results := []tools.ToolCallResult{
		{ToolName: "add_task", Status: tools.CallStatusSuccess},
		{ToolName: "delete_task", Status: tools.CallStatusError, ErrorCode: string(errors.ErrCodeNotOwned), Error: "[NOT_OWNED] task 3 belongs to another user"},
		{ToolName: "complete_task", Status: tools.CallStatusError, ErrorCode: string(errors.ErrCodeNotFound), Error: "[NOT_FOUND] task 9 not found"},
	}

	text := composeFallback(results)
	assert.Contains(t, text, "I added the task.")
	assert.Contains(t, text, "However, ")
	assert.Contains(t, text, "belongs to someone else")
	assert.Contains(t, text, "couldn't find that task")
	for _, code := range []string{"NOT_OWNED", "NOT_FOUND", "INVALID_ARGUMENTS", "PERSISTENCE_FAILURE"} {
		assert.NotContains(t, text, code)
	}
}

func TestComposeFallbackWithNoResults(t *testing.T) {
	text := composeFallback(nil)
	assert.Contains(t, text, "didn't make any changes")
}

func TestClarificationQuestionListsCandidates(t *testing.T) {
	candidates := []*store.Task{
		{ID: 3, Title: "weekly report"},
		{ID: 8, Title: "monthly report", Completed: true},
	}

	text := clarificationQuestion("report", candidates)
	assert.True(t, strings.HasPrefix(text, "I found 2 tasks matching \"report\":"))
	assert.Contains(t, text, "- #3 weekly report")
	assert.Contains(t, text, "- #8 monthly report (completed)")
	assert.True(t, strings.HasSuffix(text, "Which one did you mean?"))
}
