package preprocess

import (
	"math/rand/v2"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "only whitespace", in: " \t\r\n \n", want: ""},
		{name: "windows line endings", in: "One.\r\nTwo.\rThree.", want: "One.\nTwo.\nThree."},
		{name: "collapses inline whitespace", in: "a  \t b  c", want: "a b c"},
		{name: "trims trailing spaces per line", in: "First.   \nSecond.\t", want: "First.\nSecond."},
		{name: "drops bare page numbers", in: "Intro.\n12\nOutro.", want: "Intro.\nOutro."},
		{name: "drops page x of y", in: "Intro.\n  Page 3 of 9  \nOutro.", want: "Intro.\nOutro."},
		{name: "drops dashed page numbers", in: "Intro.\n- 4 -\nOutro.", want: "Intro.\nOutro."},
		{name: "keeps numbers inside prose", in: "There are 12 apples.", want: "There are 12 apples."},
		{name: "rejoins wrapped sentence", in: "the quick brown\nfox jumps", want: "the quick brown fox jumps"},
		{name: "rejoins after comma", in: "apples,\noranges", want: "apples, oranges"},
		{name: "keeps newline before capital", in: "end of line\nNew sentence", want: "end of line\nNew sentence"},
		{name: "keeps newline after period", in: "done.\nnext", want: "done.\nnext"},
		{name: "collapses long blank runs", in: "A.\n\n\n\n\n\nB.", want: "A.\n\nB."},
		{name: "keeps two blank lines", in: "A.\n\n\nB.", want: "A.\n\n\nB."},
		{name: "trims document edges", in: "\n\n  Body.  \n\n", want: "Body."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.in))
		})
	}
}

// atoms are the building blocks of generated inputs, weighted towards the
// pieces the normalizer reacts to.
var atoms = []string{
	"page", "Page", "of", "3", "12", "3/9", " 3 / 9", "- 4 -", "Page 3 of 9",
	"apple", "Intro.", "Next Section", "é", ",", ".",
	" ", "  ", "\t", "\f", "\v", "\n", "\n\n", "\n\n\n\n", "\r\n", "\r",
	"\u00a0", "\u2003", "\u3000", "\u0085", "\u2028", "\u202f",
}

func randomText(r *rand.Rand) string {
	var b strings.Builder
	for n := r.IntN(30); n > 0; n-- {
		b.WriteString(atoms[r.IntN(len(atoms))])
	}
	return b.String()
}

func TestText_Idempotent(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		in := randomText(r)
		once := Text(in)
		require.Equal(t, once, Text(once), "input %q", in)
	}
}

func TestText_UnicodeIndentedPageNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "em space", in: "\u20033\nIntroduction to the handbook."},
		{name: "ideographic space", in: "\u3000Page 2\nIntroduction to the handbook."},
		{name: "next line", in: "\u0085- 4 -\nIntroduction to the handbook."},
		{name: "page of pages", in: "\u2003 3/9\r\nIntroduction to the handbook."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "Introduction to the handbook.", Text(tt.in))
		})
	}
}

func FuzzText(f *testing.F) {
	f.Add("wrapped line\ncontinues here,\nand here\n\n\n\n\nPage 2\n\nNext Section")
	f.Add("\u20033\nIntroduction to the handbook.")
	f.Add("\u2003 3/9\r\npageB")
	f.Add("  spaced\t\tout  \n\n\n  text with é accents\nand more  ")

	f.Fuzz(func(t *testing.T, in string) {
		if !utf8.ValidString(in) {
			t.Skip()
		}
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Fatalf("not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	})
}
