package models

import (
	"strconv"
	"time"
)

// Document is an uploaded file together with its extracted text.
// Text is loaded from object storage on demand and never serialized.
type Document struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	FileName   string    `json:"file_name"`
	MIMEType   string    `json:"mime_type"`
	SizeBytes  int64     `json:"size_bytes"`
	PageCount  int       `json:"page_count"` // 0 when the format has no pages (DOCX)
	Summary    string    `json:"summary,omitempty"`
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
	Text       string    `json:"-"`
}

// Citation is a located reference recovered from an answer.
// Page is set only for page citations; a parsed page of 0 is still present.
type Citation struct {
	Text    string `json:"text"`
	Page    *int   `json:"page,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// PageCitation builds a page citation.
func PageCitation(page int, snippet string) Citation {
	p := page
	return Citation{
		Text:    "Page " + strconv.Itoa(page),
		Page:    &p,
		Snippet: snippet,
	}
}

// HasPage reports whether the citation points at a page.
func (c Citation) HasPage() bool {
	return c.Page != nil
}

// Conversation groups the turns one owner had about one document.
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Turn is a single question/answer exchange in a conversation.
type Turn struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Question       string     `json:"question"`
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations,omitempty"`
	Truncated      bool       `json:"truncated"`
	CreatedAt      time.Time  `json:"created_at"`
}
