package citation

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/citedoc/pkg/models"
)

func texts(citations []models.Citation) []string {
	out := make([]string, len(citations))
	for i, c := range citations {
		out[i] = c.Text
	}
	return out
}

func TestExtract_RepeatedPageAndSection(t *testing.T) {
	answer := "The capital is Paris (Page 12). See also Page 12 for details and Section 4.1 for background."

	got := Extract(answer)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"Page 12", "Page 12", "Section 4.1"}, texts(got))

	require.NotNil(t, got[0].Page)
	require.NotNil(t, got[1].Page)
	assert.Equal(t, 12, *got[0].Page)
	assert.Equal(t, 12, *got[1].Page)
	assert.NotEqual(t, got[0].Snippet, got[1].Snippet)

	assert.Nil(t, got[2].Page)
	assert.Empty(t, got[2].Snippet)
}

func TestExtract_NoReferences(t *testing.T) {
	got := Extract("Not found in the document.")

	assert.Nil(t, got)
}

func TestExtract_EmptyAnswer(t *testing.T) {
	assert.Nil(t, Extract(""))
}

func TestExtract_PagePattern(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
		pages  []int
	}{
		{
			name:   "lower case is normalised",
			answer: "see page 7",
			want:   []string{"Page 7"},
			pages:  []int{7},
		},
		{
			name:   "upper case",
			answer: "PAGE 3 lists the totals",
			want:   []string{"Page 3"},
			pages:  []int{3},
		},
		{
			name:   "leading zeros are parsed base 10",
			answer: "Page 012",
			want:   []string{"Page 12"},
			pages:  []int{12},
		},
		{
			name:   "zero is accepted",
			answer: "Page 0 is the cover",
			want:   []string{"Page 0"},
			pages:  []int{0},
		},
		{
			name:   "embedded in a larger word",
			answer: "the subPage 4 entry",
			want:   []string{"Page 4"},
			pages:  []int{4},
		},
		{
			name:   "any whitespace run",
			answer: "Page\t\n 9",
			want:   []string{"Page 9"},
			pages:  []int{9},
		},
		{
			name:   "plural does not match",
			answer: "Pages 4 to 6",
			want:   nil,
		},
		{
			name:   "no digits",
			answer: "Page one",
			want:   nil,
		},
		{
			name:   "digit run too large for int is clamped",
			answer: "Page 99999999999999999999999 and Page 2",
			want:   []string{"Page 99999999999999999999999", "Page 2"},
			pages:  []int{math.MaxInt, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.answer)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.Equal(t, tt.want, texts(got))
			for i, page := range tt.pages {
				require.NotNil(t, got[i].Page)
				assert.Equal(t, page, *got[i].Page)
			}
		})
	}
}

func TestExtract_SectionPattern(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "section and chapter",
			answer: "Section 3.2 and Chapter 4 agree",
			want:   []string{"Section 3.2", "Chapter 4"},
		},
		{
			name:   "identical text deduplicated",
			answer: "Section 2 says so; Section 2 again",
			want:   []string{"Section 2"},
		},
		{
			name:   "dedup is case sensitive",
			answer: "Section 2 and section 2",
			want:   []string{"Section 2", "section 2"},
		},
		{
			name:   "hyphen and dot characters",
			answer: "Chapter A-1.b covers it",
			want:   []string{"Chapter A-1.b"},
		},
		{
			name:   "mixed case keywords",
			answer: "see SECTION 7 and cHaPtEr 3",
			want:   []string{"SECTION 7", "cHaPtEr 3"},
		},
		{
			name:   "long s is not folded onto s",
			answer: "ſection 2 and Section 2",
			want:   []string{"Section 2"},
		},
		{
			name:   "trailing dot is part of the match",
			answer: "as stated in Section 5.",
			want:   []string{"Section 5."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, texts(Extract(tt.answer)))
		})
	}
}

func TestExtract_PagesPrecedeSections(t *testing.T) {
	answer := "Section 1 first, then Chapter 2, and finally Page 30."

	got := Extract(answer)

	assert.Equal(t, []string{"Page 30", "Section 1", "Chapter 2"}, texts(got))
}

func TestExtract_ScansAreIndependent(t *testing.T) {
	got := Extract("see Chapter Page 5")

	assert.Equal(t, []string{"Page 5", "Chapter Page"}, texts(got))
}

func TestExtract_CapsAtFive(t *testing.T) {
	answer := "Section 9 then Page 1, Page 2, Page 3, Page 4 and Chapter 7, Section 8."

	got := Extract(answer)

	require.Len(t, got, MaxCitations)
	assert.Equal(t, []string{"Page 1", "Page 2", "Page 3", "Page 4", "Section 9"}, texts(got))
}

func TestExtract_CapKeepsPagesOnly(t *testing.T) {
	answer := strings.Repeat("Page 1 ", 7) + "Section 2"

	got := Extract(answer)

	require.Len(t, got, MaxCitations)
	for _, c := range got {
		assert.Equal(t, "Page 1", c.Text)
	}
}

func TestSnippet_Boundaries(t *testing.T) {
	t.Run("match at offset zero", func(t *testing.T) {
		answer := "Page 3 has the figure."
		got := Extract(answer)
		require.Len(t, got, 1)
		assert.Equal(t, answer, got[0].Snippet)
	})

	t.Run("match at the end", func(t *testing.T) {
		answer := "The figure is on Page 3"
		got := Extract(answer)
		require.Len(t, got, 1)
		assert.Equal(t, answer, got[0].Snippet)
	})

	t.Run("long context is truncated with ellipsis", func(t *testing.T) {
		answer := strings.Repeat("a", 200) + " Page 8 " + strings.Repeat("b", 200)
		got := Extract(answer)
		require.Len(t, got, 1)

		snippet := got[0].Snippet
		assert.Equal(t, MaxSnippet+len(ellipsis), len(snippet))
		assert.True(t, strings.HasSuffix(snippet, ellipsis))
		// window starts 100 characters before the match
		assert.Equal(t, strings.Repeat("a", 99)+" ", snippet[:100])
	})

	t.Run("whitespace is trimmed before measuring", func(t *testing.T) {
		answer := "   Page 2   "
		got := Extract(answer)
		require.Len(t, got, 1)
		assert.Equal(t, "Page 2", got[0].Snippet)
	})

	t.Run("multibyte text is windowed by character", func(t *testing.T) {
		answer := strings.Repeat("é", 150) + " Page 4"
		got := Extract(answer)
		require.Len(t, got, 1)
		assert.True(t, utf8.ValidString(got[0].Snippet))
		assert.Equal(t, MaxSnippet+len(ellipsis), utf8.RuneCountInString(got[0].Snippet))
	})
}

func TestExtract_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"alpha", "beta", "the", "document", "states", ",", ".", "\n", "Sectional"}

	for i := 0; i < 200; i++ {
		var b strings.Builder
		var pages []int
		for j := 0; j < rng.Intn(40); j++ {
			if rng.Intn(6) == 0 {
				n := rng.Intn(500)
				pages = append(pages, n)
				fmt.Fprintf(&b, "Page %d ", n)
				continue
			}
			b.WriteString(words[rng.Intn(len(words))])
			b.WriteByte(' ')
		}
		answer := b.String()

		got := Extract(answer)

		want := min(len(pages), MaxCitations)
		require.Len(t, got, want, "answer %q", answer)
		for k := 0; k < want; k++ {
			require.NotNil(t, got[k].Page)
			assert.Equal(t, pages[k], *got[k].Page)
			assert.LessOrEqual(t, utf8.RuneCountInString(got[k].Snippet), MaxSnippet+len(ellipsis))
			assert.Contains(t, answer, strings.TrimSuffix(got[k].Snippet, ellipsis))
		}
	}
}
