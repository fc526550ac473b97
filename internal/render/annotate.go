package render

import (
	"regexp"
	"strings"
)

// NoResponse is shown when there is no human-readable text.
const NoResponse = "No response available."

var (
	boldPattern   = regexp.MustCompile(`\*\*(.*?)\*\*`)
	bulletPattern = regexp.MustCompile(`^\s*[\*\+]\s*`)
)

// LineKind distinguishes list items from paragraphs.
type LineKind int

const (
	LineParagraph LineKind = iota
	LineBullet
)

// Segment is a run of text that is either bold or plain.
type Segment struct {
	Text string
	Bold bool
}

// Line is one non-blank line of annotated text.
type Line struct {
	Kind     LineKind
	Segments []Segment
}

// Plain returns the line text without markers.
func (l Line) Plain() string {
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Annotate splits text into lines and recognises the two inline markers:
// **bold** spans and a leading * or + bullet. Blank lines are dropped.
// Bold is resolved first, so a line opening with ** is never a bullet.
func Annotate(text string) []Line {
	var out []Line
	for _, raw := range strings.Split(text, "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		segs := splitBold(raw)
		line := Line{Kind: LineParagraph}
		if len(segs) > 0 && !segs[0].Bold {
			if loc := bulletPattern.FindStringIndex(segs[0].Text); loc != nil {
				line.Kind = LineBullet
				segs[0].Text = segs[0].Text[loc[1]:]
				if segs[0].Text == "" {
					segs = segs[1:]
				}
			}
		}
		line.Segments = segs
		out = append(out, line)
	}
	return out
}

func splitBold(line string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range boldPattern.FindAllStringSubmatchIndex(line, -1) {
		if m[0] > last {
			segs = append(segs, Segment{Text: line[last:m[0]]})
		}
		segs = append(segs, Segment{Text: line[m[2]:m[3]], Bold: true})
		last = m[1]
	}
	if last < len(line) {
		segs = append(segs, Segment{Text: line[last:]})
	}
	return segs
}

// Bullet reports whether the line is a list item.
func (l Line) Bullet() bool { return l.Kind == LineBullet }
