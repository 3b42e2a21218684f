package whatsapp

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	md          = goldmark.New()
	extraBlanks = regexp.MustCompile(`\n{3,}`)
)

// PlainText reduces markdown to the plain text WhatsApp displays.
// Emphasis and heading markers are dropped, list markers kept, and a
// link becomes "label (url)" unless the label already is the url.
func PlainText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	src := []byte(s)
	doc := md.Parser().Parse(text.NewReader(src))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		case *ast.AutoLink:
			if entering {
				buf.Write(node.URL(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if !entering {
				dest := string(node.Destination)
				if label := string(node.Text(src)); dest != "" && label != dest {
					buf.WriteString(" (" + dest + ")")
				}
			}
		case *ast.Image:
			if entering {
				buf.Write(node.Text(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(src))
				}
				buf.WriteByte('\n')
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			if entering {
				buf.WriteString(listPrefix(node))
			} else if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
				buf.WriteByte('\n')
			}
		case *ast.List:
			if !entering && node.Parent() == doc {
				buf.WriteByte('\n')
			}
		case *ast.TextBlock:
			if !entering {
				buf.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				buf.WriteString("\n\n")
			}
		}
		return ast.WalkContinue, nil
	})

	out := extraBlanks.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

// listPrefix renders the marker of a list item, indented by nesting.
func listPrefix(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok {
		return "- "
	}

	depth := 0
	for p := list.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	indent := strings.Repeat("  ", depth)

	if !list.IsOrdered() {
		return indent + "- "
	}
	index := 0
	for s := item.PreviousSibling(); s != nil; s = s.PreviousSibling() {
		index++
	}
	return indent + strconv.Itoa(list.Start+index) + ". "
}
