package literal

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const xmlIndent = "  "

type xmlKind int

const (
	xmlElement xmlKind = iota
	xmlText
	xmlComment
	xmlProcInst
	xmlDirective
)

type xmlNode struct {
	kind     xmlKind
	start    xml.StartElement
	text     string
	children []*xmlNode
}

// Indent re-serializes an XML document or fragment with one element per line
// and two-space indentation. Whitespace-only text between elements is
// dropped; elements holding mixed content are kept on a single line so their
// text is not altered. Prefixes are preserved exactly as written.
func Indent(doc string) (string, error) {
	if strings.TrimSpace(doc) == "" {
		return doc, nil
	}
	root := &xmlNode{kind: xmlElement}
	stack := []*xmlNode{root}

	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse xml value: %w", err)
		}
		parent := stack[len(stack)-1]
		switch tk := tok.(type) {
		case xml.StartElement:
			n := &xmlNode{kind: xmlElement, start: tk.Copy()}
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 1 || qname(parent.start.Name) != qname(tk.Name) {
				return "", fmt.Errorf("failed to parse xml value: unexpected end element %s", qname(tk.Name))
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			parent.children = append(parent.children, &xmlNode{kind: xmlText, text: string(tk)})
		case xml.Comment:
			parent.children = append(parent.children, &xmlNode{kind: xmlComment, text: string(tk)})
		case xml.ProcInst:
			parent.children = append(parent.children, &xmlNode{kind: xmlProcInst, text: tk.Target + " " + string(tk.Inst)})
		case xml.Directive:
			parent.children = append(parent.children, &xmlNode{kind: xmlDirective, text: string(tk)})
		}
	}
	if len(stack) != 1 {
		return "", fmt.Errorf("failed to parse xml value: unclosed element %s", qname(stack[len(stack)-1].start.Name))
	}

	var buf bytes.Buffer
	first := true
	for _, n := range root.children {
		if n.kind == xmlText && strings.TrimSpace(n.text) == "" {
			continue
		}
		if !first {
			buf.WriteByte('\n')
		}
		first = false
		writeNode(&buf, n, 0)
	}
	return buf.String(), nil
}

func qname(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func hasText(n *xmlNode) bool {
	for _, c := range n.children {
		if c.kind == xmlText && strings.TrimSpace(c.text) != "" {
			return true
		}
	}
	return false
}

func writeNode(buf *bytes.Buffer, n *xmlNode, depth int) {
	buf.WriteString(strings.Repeat(xmlIndent, depth))
	if n.kind != xmlElement {
		writeInline(buf, n)
		return
	}
	if len(n.children) == 0 || hasText(n) {
		writeInline(buf, n)
		return
	}

	writeStart(buf, n)
	for _, c := range n.children {
		if c.kind == xmlText && strings.TrimSpace(c.text) == "" {
			continue
		}
		buf.WriteByte('\n')
		writeNode(buf, c, depth+1)
	}
	buf.WriteByte('\n')
	buf.WriteString(strings.Repeat(xmlIndent, depth))
	buf.WriteString("</" + qname(n.start.Name) + ">")
}

func writeInline(buf *bytes.Buffer, n *xmlNode) {
	switch n.kind {
	case xmlText:
		_ = xml.EscapeText(buf, []byte(n.text))
	case xmlComment:
		buf.WriteString("<!--" + n.text + "-->")
	case xmlProcInst:
		buf.WriteString("<?" + strings.TrimSpace(n.text) + "?>")
	case xmlDirective:
		buf.WriteString("<!" + n.text + ">")
	case xmlElement:
		if len(n.children) == 0 {
			buf.WriteString("<" + qname(n.start.Name))
			writeAttrs(buf, n.start.Attr)
			buf.WriteString(" />")
			return
		}
		writeStart(buf, n)
		for _, c := range n.children {
			writeInline(buf, c)
		}
		buf.WriteString("</" + qname(n.start.Name) + ">")
	}
}

func writeStart(buf *bytes.Buffer, n *xmlNode) {
	buf.WriteString("<" + qname(n.start.Name))
	writeAttrs(buf, n.start.Attr)
	buf.WriteByte('>')
}

func writeAttrs(buf *bytes.Buffer, attrs []xml.Attr) {
	for _, a := range attrs {
		buf.WriteString(" " + qname(a.Name) + `="`)
		_ = xml.EscapeText(buf, []byte(a.Value))
		buf.WriteByte('"')
	}
}
