package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mfenderov/citedoc/internal/extract"
	"github.com/mfenderov/citedoc/internal/qa"
	"github.com/mfenderov/citedoc/pkg/models"
)

const loadTimeout = 30 * time.Second

type documentLoadedMsg struct {
	doc   *models.Document
	pages []string
	err   error
}

type answerMsg struct {
	question string
	result   *qa.Result
	err      error
}

// loadDocumentCmd fetches the original file and splits it into pages. Formats
// without pages render as a single page.
func loadDocumentCmd(session Session, ownerID, documentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		data, doc, err := session.File(ctx, ownerID, documentID)
		if err != nil {
			return documentLoadedMsg{err: err}
		}
		result, err := extract.Extract(data, doc.MIMEType)
		if err != nil {
			return documentLoadedMsg{doc: doc, err: err}
		}
		pages := result.Pages
		if len(pages) == 0 {
			pages = []string{result.Text}
		}
		return documentLoadedMsg{doc: doc, pages: pages}
	}
}

func askCmd(session Session, ownerID, documentID, question string, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		result, err := session.Ask(ctx, ownerID, documentID, question)
		return answerMsg{question: question, result: result, err: err}
	}
}
