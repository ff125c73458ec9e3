package qa

import (
	"fmt"
	"unicode/utf8"
)

// DefaultMaxDocumentChars is the document budget placed in a prompt.
// Anything past it is left out of the prompt and reported as truncated.
const DefaultMaxDocumentChars = 100000

// Truncate cuts text to at most maxChars characters. It reports whether
// anything was dropped. A non-positive budget disables truncation.
func Truncate(text string, maxChars int) (string, bool) {
	if maxChars <= 0 || len(text) <= maxChars {
		// byte length bounds rune count from above
		return text, false
	}
	if utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}

	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i], true
		}
		n++
	}
	return text, false
}

// QuestionPrompt builds the grounding prompt for a question about a document.
// The same inputs always produce the same prompt.
func QuestionPrompt(question, documentText string, maxChars int) (string, bool) {
	content, truncated := Truncate(documentText, maxChars)

	return fmt.Sprintf(`You are a precise document analysis assistant. Your task is to answer questions about the following document with EXACT citations and references.

CRITICAL RULES:
1. ONLY answer based on information explicitly stated in the document
2. For EVERY claim you make, provide the exact section, page, or paragraph where it appears
3. If information is not in the document, clearly state "This information is not found in the document"
4. Quote relevant passages when possible
5. Provide specific location references (e.g., "Section 3.2", "Page 15", "Chapter 4")
6. If you're uncertain, say so - never hallucinate or guess

Document content:
%s

---

User question: %s

Please provide:
1. A direct answer to the question
2. Exact citations showing where in the document this information appears
3. Relevant quotes if applicable`, content, question), truncated
}

// SummaryPrompt builds the executive-summary prompt for a document.
func SummaryPrompt(documentText string, maxChars int) (string, bool) {
	content, truncated := Truncate(documentText, maxChars)

	return fmt.Sprintf(`You are analyzing a document. Please provide a comprehensive executive summary of the following document. Focus on:
1. Main purpose and topic
2. Key findings or information
3. Important sections or chapters
4. Critical details or specifications

Be concise but thorough. Format with clear paragraphs.

Document content:

%s`, content), truncated
}
