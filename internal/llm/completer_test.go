package llm

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("[Context 1]\nsome text", "what is this?")
	if !strings.Contains(p, "[Context 1]\nsome text") {
		t.Error("prompt should contain the context block")
	}
	if !strings.Contains(p, "what is this?") {
		t.Error("prompt should contain the question")
	}
	if strings.Index(p, "Context:") > strings.Index(p, "Question:") {
		t.Error("context should precede the question")
	}
}
