package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/docchat/internal/preprocess"
)

// reconstruct stitches chunks back together, dropping each chunk's overlap
// with its predecessor.
func reconstruct(t *testing.T, chunks []Chunk) string {
	t.Helper()
	var b strings.Builder
	prevEnd := 0
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c.Content)
			prevEnd = c.End
			continue
		}
		overlap := prevEnd - c.Start
		require.GreaterOrEqual(t, overlap, 0, "chunk %d leaves a gap", i)
		b.WriteString(c.Content[overlap:])
		prevEnd = c.End
	}
	return b.String()
}

// sentenceDoc builds 24 sentences totalling exactly 2400 characters.
func sentenceDoc() string {
	sentences := make([]string, 24)
	for i := range sentences {
		body := fmt.Sprintf("Sentence %02d talks about ", i)
		width := 98
		if i == 0 {
			width = 99
		}
		sentences[i] = body + strings.Repeat("x", width-len(body)) + "."
	}
	return strings.Join(sentences, " ")
}

func mixedDoc() string {
	para := func(word string, n int) string {
		return "Lorem " + strings.Repeat(word+" ", n) + "end of paragraph."
	}
	return "# Handbook\n\n" +
		para("alpha", 120) + "\n\n" +
		"## Travel\n\n" +
		para("beta", 60) + " Another sentence follows here! And a question? Yes; indeed, it does.\n\n" +
		"---\n" +
		"- first item with words\n- second item with words\n\n" +
		strings.Repeat("z", 2500) + "\n\n" +
		"## Closing\n\n" + para("gamma", 200)
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		assert.Equal(t, DefaultChunkSize, c.Size())
		assert.Equal(t, DefaultOverlap, c.Overlap())
	})

	t.Run("overlap clamped below chunk size", func(t *testing.T) {
		c := New(WithChunkSize(100), WithOverlap(150))
		assert.Less(t, c.Overlap(), c.Size())
		assert.Equal(t, 25, c.Overlap())
	})

	t.Run("invalid values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(-1))
		assert.Equal(t, DefaultChunkSize, c.Size())
		assert.Equal(t, DefaultOverlap, c.Overlap())
	})

	t.Run("structure off drops structural separators", func(t *testing.T) {
		c := New(WithStructure(false))
		for _, sep := range c.table {
			assert.False(t, sep.Structural, "separator %s should be skipped", sep.Name)
		}
	})
}

func TestChunk_Empty(t *testing.T) {
	c := New()
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n\t  "))
}

func TestChunk_ShortInputIsSingleChunk(t *testing.T) {
	inputs := []string{
		"Hello world.",
		"Line one\r\nline two\r\n\r\n\r\n\r\n\r\nPage 2\nFinal paragraph.",
		strings.Repeat("a", 1000),
	}

	c := New()
	for _, in := range inputs {
		chunks := c.Chunk(in)
		require.Len(t, chunks, 1)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, preprocess.Text(in), chunks[0].Content)
	}
}

func TestChunk_TwentyFourHundredCharacterDocument(t *testing.T) {
	doc := sentenceDoc()
	require.Len(t, doc, 2400)

	chunks := New(WithChunkSize(1000), WithOverlap(200)).Chunk(doc)
	require.Len(t, chunks, 3)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Content), 1000)
	}

	overlap := chunks[0].End - chunks[1].Start
	assert.Greater(t, overlap, 0)
	assert.LessOrEqual(t, overlap, 200)
	assert.True(t, strings.HasSuffix(chunks[0].Content, chunks[1].Content[:overlap]))
	assert.True(t, strings.HasPrefix(chunks[1].Content, "Sentence"), "overlap should start on a sentence boundary")
}

func TestChunk_LosslessReconstruction(t *testing.T) {
	docs := map[string]string{
		"sentences": sentenceDoc(),
		"mixed":     mixedDoc(),
		"unicode":   strings.Repeat("héllo wörld ünïcode ", 300),
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			c := New(WithChunkSize(300), WithOverlap(60))
			chunks := c.Chunk(doc)
			require.NotEmpty(t, chunks)

			text := preprocess.Text(doc)
			assert.Equal(t, text, reconstruct(t, chunks))
			for _, ch := range chunks {
				assert.Equal(t, text[ch.Start:ch.End], ch.Content)
			}
		})
	}
}

func TestChunk_SizeBound(t *testing.T) {
	for _, size := range []int{50, 120, 300, 1000} {
		t.Run(fmt.Sprintf("size_%d", size), func(t *testing.T) {
			chunks := New(WithChunkSize(size), WithOverlap(size/5)).Chunk(mixedDoc())
			for _, ch := range chunks {
				assert.LessOrEqual(t, utf8.RuneCountInString(ch.Content), size)
				assert.True(t, utf8.ValidString(ch.Content))
			}
		})
	}
}

func TestChunk_UnsplittableTokenIsForceSplit(t *testing.T) {
	token := strings.Repeat("q", 2500)
	chunks := New(WithChunkSize(1000), WithOverlap(0)).Chunk(token)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Content, 1000)
	assert.Len(t, chunks[1].Content, 1000)
	assert.Len(t, chunks[2].Content, 500)
}

func TestChunk_ContiguousOrdinals(t *testing.T) {
	chunks := New(WithChunkSize(200), WithOverlap(40)).Chunk(mixedDoc())
	require.Greater(t, len(chunks), 5)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
	}
}

func TestChunk_OverlapNeverExceedsConfigured(t *testing.T) {
	chunks := New(WithChunkSize(250), WithOverlap(50)).Chunk(mixedDoc())
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].End - chunks[i].Start
		assert.GreaterOrEqual(t, overlap, 0)
		assert.LessOrEqual(t, overlap, 50)
	}
}

func TestChunk_HeaderStaysWithContent(t *testing.T) {
	doc := "# Alpha\n\nLorem " + strings.Repeat("ipsum ", 150) + "done\n\n## Beta\nBeta body starts here and continues " +
		strings.Repeat("dolor ", 40) + "finish."

	chunks := New(WithChunkSize(1000), WithOverlap(0)).Chunk(doc)
	require.Len(t, chunks, 2)

	second := strings.TrimSpace(chunks[1].Content)
	assert.True(t, strings.HasPrefix(second, "## Beta"), "got %q", second[:20])
	assert.Contains(t, second, "Beta body starts here")
	assert.NotContains(t, chunks[0].Content, "## Beta")
}

func TestChunk_PureFunction(t *testing.T) {
	c := New(WithChunkSize(300), WithOverlap(50))
	assert.Equal(t, c.Chunk(mixedDoc()), c.Chunk(mixedDoc()))
}
