package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(t *testing.T, table []Separator, name string) int {
	t.Helper()
	for i, sep := range table {
		if sep.Name == name {
			return i
		}
	}
	t.Fatalf("separator %q not in table", name)
	return -1
}

func TestSeparators_PriorityOrder(t *testing.T) {
	table := Separators()

	ordered := []string{
		"h1", "h2", "h3",
		"rule",
		"blank-lines",
		"paragraph",
		"sentence-period",
		"clause-semicolon",
		"list-dash",
		"newline",
		"word",
	}
	for i := 1; i < len(ordered); i++ {
		assert.Less(t, indexOf(t, table, ordered[i-1]), indexOf(t, table, ordered[i]),
			"%s should come before %s", ordered[i-1], ordered[i])
	}
	assert.Equal(t, "word", table[len(table)-1].Name)
}

func TestSeparators_ReturnsCopy(t *testing.T) {
	table := Separators()
	table[0].Name = "changed"
	assert.Equal(t, "h1", Separators()[0].Name)
}

func TestSeparator_Split(t *testing.T) {
	tests := []struct {
		name string
		sep  Separator
		in   string
		want []string
	}{
		{
			name: "header attaches to next",
			sep:  Separator{Text: "\n## ", Attach: AttachNext},
			in:   "intro\n## One\nbody\n## Two\nmore",
			want: []string{"intro", "\n## One\nbody", "\n## Two\nmore"},
		},
		{
			name: "sentence attaches to previous",
			sep:  Separator{Text: ". ", Attach: AttachPrev},
			in:   "First. Second. Third.",
			want: []string{"First. ", "Second. ", "Third."},
		},
		{
			name: "leading separator yields no empty piece",
			sep:  Separator{Text: "\n- ", Attach: AttachNext},
			in:   "\n- a\n- b",
			want: []string{"\n- a", "\n- b"},
		},
		{
			name: "no match",
			sep:  Separator{Text: "; ", Attach: AttachPrev},
			in:   "nothing here",
			want: []string{"nothing here"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sep.split(tt.in)
			require.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, strings.Join(got, ""))
		})
	}
}
