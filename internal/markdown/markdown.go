// Package markdown derives display strings from note content.
package markdown

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	TitleMaxRunes   = 50
	PreviewMaxRunes = 100
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

func parse(src []byte) ast.Node {
	return md.Parser().Parse(text.NewReader(src))
}

// Title returns the plain text of the first line of the first block that has
// any text, cut to TitleMaxRunes. fallback is returned for content without text.
func Title(content, fallback string) string {
	src := []byte(content)
	var title string

	_ = ast.Walk(parse(src), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock:
			title = strings.TrimSpace(inlineText(n, src, true))
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			title = strings.TrimSpace(firstLine(linesText(n, src)))
		default:
			return ast.WalkContinue, nil
		}
		if title != "" {
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	if title == "" {
		return fallback
	}
	return ClampTitle(title)
}

// ClampTitle trims s and cuts it to TitleMaxRunes.
func ClampTitle(s string) string {
	return strings.TrimSpace(truncate(strings.TrimSpace(s), TitleMaxRunes))
}

// Preview returns the content as a single line of plain text, cut to
// PreviewMaxRunes with a trailing "..." when cut.
func Preview(content string) string {
	src := []byte(content)
	var b strings.Builder

	_ = ast.Walk(parse(src), func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock:
			b.WriteString(inlineText(n, src, false))
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			b.WriteString(linesText(n, src))
		default:
			return ast.WalkContinue, nil
		}
		b.WriteByte(' ')
		return ast.WalkSkipChildren, nil
	})

	plain := strings.Join(strings.Fields(b.String()), " ")
	if utf8.RuneCountInString(plain) <= PreviewMaxRunes {
		return plain
	}
	return truncate(plain, PreviewMaxRunes) + "..."
}

// inlineText collects the literal text under n, dropping markup.
func inlineText(n ast.Node, src []byte, firstLineOnly bool) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				if firstLineOnly {
					return ast.WalkStop, nil
				}
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		case *ast.AutoLink:
			b.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func linesText(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return b.String()
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
