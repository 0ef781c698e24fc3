// Package chunker splits preprocessed text into bounded, overlapping chunks,
// preferring the coarsest structural boundary that keeps each chunk in size.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/bull/docchat/internal/preprocess"
)

const (
	// DefaultChunkSize is the maximum number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultOverlap is the number of trailing characters of a closed chunk
	// that seed the next one.
	DefaultOverlap = 200

	// overlapSearchWindow is how far (in characters) the overlap seed may be
	// moved forward to start on a sentence boundary.
	overlapSearchWindow = 50
)

// Chunk is one piece of a document. Content == text[Start:End] where text is
// the preprocessed input and offsets are in bytes.
type Chunk struct {
	Index   int
	Content string
	Start   int
	End     int
}

// Chunker is a recursive, separator-driven text splitter. It is safe for
// concurrent use.
type Chunker struct {
	size      int
	overlap   int
	structure bool
	table     []Separator
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithChunkSize sets the maximum chunk size in characters. Non-positive values are ignored.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap in characters. Negative values are ignored.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithStructure toggles header, rule and list separators.
func WithStructure(preserve bool) Option {
	return func(c *Chunker) {
		c.structure = preserve
	}
}

// New creates a Chunker. An overlap that is not smaller than the chunk size
// is clamped to a quarter of the chunk size.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:      DefaultChunkSize,
		overlap:   DefaultOverlap,
		structure: true,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	for _, sep := range separators {
		if sep.Structural && !c.structure {
			continue
		}
		c.table = append(c.table, sep)
	}

	return c
}

// Size returns the configured maximum chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the effective overlap after clamping.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk preprocesses text and splits it. Empty input yields no chunks; input
// that fits in one chunk yields exactly one chunk at index 0.
func (c *Chunker) Chunk(text string) []Chunk {
	text = preprocess.Text(text)
	if text == "" {
		return nil
	}
	return c.merge(text, c.split(text, 0))
}

// split recursively cuts text using the highest priority separator, starting
// at table position level, that actually divides it.
func (c *Chunker) split(text string, level int) []string {
	if runeLen(text) <= c.size {
		return []string{text}
	}

	for i := level; i < len(c.table); i++ {
		sep := c.table[i]
		if !strings.Contains(text, sep.Text) {
			continue
		}
		parts := sep.split(text)
		if len(parts) < 2 {
			continue
		}

		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if runeLen(part) > c.size {
				out = append(out, c.split(part, i+1)...)
				continue
			}
			out = append(out, part)
		}
		return out
	}

	return c.forceSplit(text)
}

// forceSplit cuts text into pieces of at most size characters, breaking after
// the last whitespace inside the limit when there is one.
func (c *Chunker) forceSplit(text string) []string {
	var out []string
	for runeLen(text) > c.size {
		cut := runeOffset(text, c.size)
		if ws := strings.LastIndexAny(text[:cut], " \n"); ws > 0 {
			cut = ws + 1
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

// merge greedily packs contiguous pieces into chunks of at most size
// characters. Each new chunk starts with the tail of the previous one.
func (c *Chunker) merge(text string, pieces []string) []Chunk {
	var chunks []Chunk

	emit := func(start, end int) {
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Content: text[start:end],
			Start:   start,
			End:     end,
		})
	}

	start, end := 0, 0
	length := 0
	hasContent := false // false while the chunk holds only an overlap seed

	for _, piece := range pieces {
		n := runeLen(piece)

		if length+n > c.size {
			if hasContent {
				emit(start, end)
				start = c.seedStart(text, start, end)
				length = runeLen(text[start:end])
				hasContent = false
			}
			if length+n > c.size {
				start = tailStart(text, start, end, c.size-n)
				length = runeLen(text[start:end])
			}
		}

		end += len(piece)
		length += n
		hasContent = true
	}

	if hasContent {
		emit(start, end)
	}
	return chunks
}

// seedStart returns where the overlap seed for the next chunk begins: the last
// overlap characters of text[start:end], moved forward to the first sentence
// boundary within the search window when one exists.
func (c *Chunker) seedStart(text string, start, end int) int {
	if c.overlap == 0 {
		return end
	}

	cut := tailStart(text, start, end, c.overlap)
	to := cut + runeOffset(text[cut:end], overlapSearchWindow)

	best := -1
	for _, b := range sentenceBoundaries {
		// Start len(b) early so a boundary ending exactly at the cut counts.
		from := max(start, cut-len(b))
		i := strings.Index(text[from:to], b)
		if i < 0 {
			continue
		}
		pos := from + i + len(b)
		if pos >= end {
			continue
		}
		if best < 0 || pos < best {
			best = pos
		}
	}
	if best >= 0 {
		return best
	}
	return cut
}

// tailStart returns the byte offset where the last n characters of
// text[start:end] begin, never before start.
func tailStart(text string, start, end, n int) int {
	if n <= 0 {
		return end
	}
	i := end
	for k := 0; k < n && i > start; k++ {
		_, size := utf8.DecodeLastRuneInString(text[start:i])
		i -= size
	}
	return i
}

// runeOffset returns the byte offset just after the first n characters of s.
func runeOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	count := 0
	for i := range s {
		if count == n {
			return i
		}
		count++
	}
	return len(s)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
