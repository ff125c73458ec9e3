package qa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		max           int
		want          string
		wantTruncated bool
	}{
		{"shorter than budget", "abc", 5, "abc", false},
		{"exactly the budget", "abcde", 5, "abcde", false},
		{"longer than budget", "abcdefg", 5, "abcde", true},
		{"budget disabled", "abcdefg", -1, "abcdefg", false},
		{"counts characters not bytes", "ééééé", 5, "ééééé", false},
		{"cuts on a character boundary", "éééééé", 5, "ééééé", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Truncate(tt.text, tt.max)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantTruncated, truncated)
		})
	}
}

func TestQuestionPrompt_Structure(t *testing.T) {
	prompt, truncated := QuestionPrompt("What is the budget?", "The budget is 5M.", DefaultMaxDocumentChars)

	assert.False(t, truncated)

	order := []string{
		"precise document analysis assistant",
		"1. ONLY answer based on information explicitly stated in the document",
		"2. For EVERY claim",
		`3. If information is not in the document, clearly state "This information is not found in the document"`,
		"4. Quote relevant passages",
		`5. Provide specific location references (e.g., "Section 3.2", "Page 15", "Chapter 4")`,
		"6. If you're uncertain",
		"The budget is 5M.",
		"User question: What is the budget?",
		"1. A direct answer to the question",
		"2. Exact citations",
		"3. Relevant quotes",
	}
	last := -1
	for _, part := range order {
		idx := strings.Index(prompt, part)
		if assert.GreaterOrEqual(t, idx, 0, "missing %q", part) {
			assert.Greater(t, idx, last, "%q out of order", part)
			last = idx
		}
	}
}

func TestQuestionPrompt_Deterministic(t *testing.T) {
	doc := strings.Repeat("lorem ipsum ", 20000)

	first, truncated := QuestionPrompt("q", doc, DefaultMaxDocumentChars)
	second, _ := QuestionPrompt("q", doc, DefaultMaxDocumentChars)

	assert.True(t, truncated)
	assert.Equal(t, first, second)
	assert.Contains(t, first, doc[:DefaultMaxDocumentChars]+"\n\n---")
}

func TestSummaryPrompt(t *testing.T) {
	prompt, truncated := SummaryPrompt("contents", 100)

	assert.False(t, truncated)
	for _, part := range []string{
		"1. Main purpose and topic",
		"2. Key findings or information",
		"3. Important sections or chapters",
		"4. Critical details or specifications",
		"Be concise but thorough. Format with clear paragraphs.",
	} {
		assert.Contains(t, prompt, part)
	}
	assert.True(t, strings.HasSuffix(prompt, "\n\ncontents"))
}
