// Package overlay renders the floating performance panel. Rendering is a pure
// mapping from metric samples and overlay state to a Node tree; a Presenter
// applies that tree to whatever Surface hosts the panel.
package overlay

import (
	"html"
	"maps"
	"slices"
	"strings"
)

// Style is a set of CSS declarations keyed by property name.
type Style map[string]string

// String serializes the declarations in property order.
func (s Style) String() string {
	keys := slices.Sorted(maps.Keys(s))
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s[k])
		b.WriteByte(';')
	}
	return b.String()
}

// Merge returns a new style with other's declarations layered over s.
func (s Style) Merge(other Style) Style {
	out := make(Style, len(s)+len(other))
	maps.Copy(out, s)
	maps.Copy(out, other)
	return out
}

// Node describes one element of the panel.
type Node struct {
	Tag      string
	Attrs    map[string]string
	Style    Style
	Text     string
	Children []*Node
}

func el(tag string, style Style, children ...*Node) *Node {
	return &Node{Tag: tag, Style: style, Children: children}
}

func text(tag string, style Style, s string) *Node {
	return &Node{Tag: tag, Style: style, Text: s}
}

func (n *Node) withID(id string) *Node {
	return n.withAttr("id", id)
}

func (n *Node) withAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// ID returns the node's id attribute.
func (n *Node) ID() string {
	if n == nil {
		return ""
	}
	return n.Attrs["id"]
}

// Find returns the first node in the subtree with the given id.
func (n *Node) Find(id string) *Node {
	if n == nil {
		return nil
	}
	if n.ID() == id {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(id); found != nil {
			return found
		}
	}
	return nil
}

// TextContent concatenates the text of the subtree, like the DOM property.
func (n *Node) TextContent() string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	b.WriteString(n.Text)
	for _, c := range n.Children {
		c.writeText(b)
	}
}

// HTML serializes the subtree. Text and attribute values are escaped, so
// page-sourced strings such as resource URLs cannot inject markup.
func (n *Node) HTML() string {
	var b strings.Builder
	n.writeHTML(&b)
	return b.String()
}

func (n *Node) writeHTML(b *strings.Builder) {
	if n == nil {
		return
	}
	b.WriteByte('<')
	b.WriteString(n.Tag)
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(n.Attrs[k]))
		b.WriteByte('"')
	}
	if len(n.Style) > 0 {
		b.WriteString(` style="`)
		b.WriteString(html.EscapeString(n.Style.String()))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if n.Tag == "style" {
		// Raw text element: CSS is authored here, never page-sourced.
		b.WriteString(n.Text)
	} else {
		b.WriteString(html.EscapeString(n.Text))
	}
	for _, c := range n.Children {
		c.writeHTML(b)
	}
	b.WriteString("</")
	b.WriteString(n.Tag)
	b.WriteByte('>')
}
