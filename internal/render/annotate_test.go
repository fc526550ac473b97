package render

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAnnotate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []Line
	}{
		{
			name: "paragraph with bold",
			in:   "Total sales were **$1,200** this week.",
			want: []Line{{Kind: LineParagraph, Segments: []Segment{
				{Text: "Total sales were "},
				{Text: "$1,200", Bold: true},
				{Text: " this week."},
			}}},
		},
		{
			name: "bullets with both markers and blank lines dropped",
			in:   "* first\n\n   + second\n  \n",
			want: []Line{
				{Kind: LineBullet, Segments: []Segment{{Text: "first"}}},
				{Kind: LineBullet, Segments: []Segment{{Text: "second"}}},
			},
		},
		{
			name: "bullet leading into bold",
			in:   "* **North** leads",
			want: []Line{{Kind: LineBullet, Segments: []Segment{
				{Text: "North", Bold: true},
				{Text: " leads"},
			}}},
		},
		{
			name: "bold at line start is not a bullet",
			in:   "**Summary**: ok",
			want: []Line{{Kind: LineParagraph, Segments: []Segment{
				{Text: "Summary", Bold: true},
				{Text: ": ok"},
			}}},
		},
		{
			name: "bold is non-greedy",
			in:   "**a** and **b**",
			want: []Line{{Kind: LineParagraph, Segments: []Segment{
				{Text: "a", Bold: true},
				{Text: " and "},
				{Text: "b", Bold: true},
			}}},
		},
		{
			name: "unterminated bold stays literal",
			in:   "cost **high",
			want: []Line{{Kind: LineParagraph, Segments: []Segment{{Text: "cost **high"}}}},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, Annotate(tc.in)); diff != "" {
				t.Fatalf("Annotate mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLinePlain(t *testing.T) {
	lines := Annotate("+ **Top** region: north")
	if len(lines) != 1 || lines[0].Plain() != "Top region: north" {
		t.Fatalf("unexpected plain text %+v", lines)
	}
}
