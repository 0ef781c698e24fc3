package rag

import (
	"regexp"
	"strconv"

	"github.com/bull/docchat/internal/model"
)

// citationPattern matches "[n]" for a positive integer n without leading zeros.
var citationPattern = regexp.MustCompile(`\[([1-9][0-9]*)\]`)

// Segment is a run of answer text, or a citation marker resolved to its source.
// Source is nil for plain text, including markers that name no source.
type Segment struct {
	Text   string        `json:"text"`
	Source *model.Source `json:"source,omitempty"`
}

// Resolve splits answer into text and citation segments. Markers whose number
// has no source are kept as literal text.
func Resolve(answer string, sources []model.Source) []Segment {
	byNumber := indexSources(sources)

	var segments []Segment
	text := func(s string) {
		if s == "" {
			return
		}
		if n := len(segments); n > 0 && segments[n-1].Source == nil {
			segments[n-1].Text += s
			return
		}
		segments = append(segments, Segment{Text: s})
	}

	last := 0
	for _, m := range citationPattern.FindAllStringSubmatchIndex(answer, -1) {
		src, ok := lookup(byNumber, answer[m[2]:m[3]])
		if !ok {
			continue
		}
		text(answer[last:m[0]])
		segments = append(segments, Segment{Text: answer[m[0]:m[1]], Source: src})
		last = m[1]
	}
	text(answer[last:])
	return segments
}

// CitedSources returns the sources answer actually cites, in number order.
func CitedSources(answer string, sources []model.Source) []model.Source {
	byNumber := indexSources(sources)
	cited := make(map[int]bool)
	for _, m := range citationPattern.FindAllStringSubmatch(answer, -1) {
		if src, ok := lookup(byNumber, m[1]); ok {
			cited[src.Number] = true
		}
	}

	var out []model.Source
	for _, s := range sources {
		if cited[s.Number] {
			out = append(out, s)
			delete(cited, s.Number)
		}
	}
	return out
}

func indexSources(sources []model.Source) map[int]*model.Source {
	byNumber := make(map[int]*model.Source, len(sources))
	for i := range sources {
		byNumber[sources[i].Number] = &sources[i]
	}
	return byNumber
}

func lookup(byNumber map[int]*model.Source, digits string) (*model.Source, bool) {
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil, false
	}
	src, ok := byNumber[n]
	return src, ok
}
