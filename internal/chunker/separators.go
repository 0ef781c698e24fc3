package chunker

import "strings"

// Attach says which neighbour keeps a separator after a split.
type Attach int

const (
	// AttachNext prefixes the separator onto the following piece, so a
	// header or list marker stays with the content it introduces.
	AttachNext Attach = iota
	// AttachPrev leaves the separator at the end of the preceding piece,
	// so sentence punctuation stays with its sentence.
	AttachPrev
)

// Separator is one entry of the split priority table.
type Separator struct {
	Name       string
	Text       string // Matched as an exact, case-sensitive substring
	Attach     Attach
	Structural bool // Skipped when structure preservation is off
}

// separators is ordered coarsest to finest. The forced character split is
// not an entry: it is what happens after the last entry fails to match.
var separators = []Separator{
	{Name: "h1", Text: "\n# ", Attach: AttachNext, Structural: true},
	{Name: "h2", Text: "\n## ", Attach: AttachNext, Structural: true},
	{Name: "h3", Text: "\n### ", Attach: AttachNext, Structural: true},
	{Name: "h4", Text: "\n#### ", Attach: AttachNext, Structural: true},
	{Name: "rule", Text: "\n---\n", Attach: AttachNext, Structural: true},
	{Name: "rule-stars", Text: "\n***\n", Attach: AttachNext, Structural: true},
	{Name: "blank-lines", Text: "\n\n\n", Attach: AttachPrev},
	{Name: "paragraph", Text: "\n\n", Attach: AttachPrev},
	{Name: "sentence-period", Text: ". ", Attach: AttachPrev},
	{Name: "sentence-exclaim", Text: "! ", Attach: AttachPrev},
	{Name: "sentence-question", Text: "? ", Attach: AttachPrev},
	{Name: "clause-semicolon", Text: "; ", Attach: AttachPrev},
	{Name: "clause-colon", Text: ": ", Attach: AttachPrev},
	{Name: "clause-comma", Text: ", ", Attach: AttachPrev},
	{Name: "list-dash", Text: "\n- ", Attach: AttachNext, Structural: true},
	{Name: "list-star", Text: "\n* ", Attach: AttachNext, Structural: true},
	{Name: "list-number", Text: "\n1. ", Attach: AttachNext, Structural: true},
	{Name: "newline", Text: "\n", Attach: AttachPrev},
	{Name: "word", Text: " ", Attach: AttachPrev},
}

// Separators returns a copy of the split priority table, coarsest first.
func Separators() []Separator {
	out := make([]Separator, len(separators))
	copy(out, separators)
	return out
}

// sentenceBoundaries are the endings the overlap seed is aligned to.
var sentenceBoundaries = []string{". ", "! ", "? ", "\n"}

// split cuts text at every occurrence of the separator. Every byte of text
// ends up in exactly one piece and empty pieces are dropped, so
// strings.Join(pieces, "") == text.
func (s Separator) split(text string) []string {
	var pieces []string
	start := 0
	from := 0
	for {
		i := strings.Index(text[from:], s.Text)
		if i < 0 {
			break
		}
		occ := from + i
		cut := occ
		if s.Attach == AttachPrev {
			cut = occ + len(s.Text)
		}
		if cut > start {
			pieces = append(pieces, text[start:cut])
			start = cut
		}
		from = occ + len(s.Text)
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}
	return pieces
}
