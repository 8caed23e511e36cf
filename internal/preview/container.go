package preview

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Container is the parsed output area of a demo. The template markup is held
// as the children of a detached root element, so the root itself never
// matches a query.
type Container struct {
	mu   sync.RWMutex
	root *html.Node
}

// Element is a node inside a Container.
type Element struct {
	c    *Container
	node *html.Node
}

// ParseContainer parses markup as an HTML fragment in a <div> context.
func ParseContainer(markup string) (*Container, error) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}

	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		return nil, fmt.Errorf("parse template markup: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	return &Container{root: root}, nil
}

// Query returns the first element matching the CSS selector, or nil.
func (c *Container) Query(selector string) (*Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	n := cascadia.Query(c.root, sel)
	if n == nil {
		return nil, nil
	}
	return &Element{c: c, node: n}, nil
}

// QueryAll returns every element matching the CSS selector in document order.
func (c *Container) QueryAll(selector string) ([]*Element, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	nodes := cascadia.QueryAll(c.root, sel)
	elements := make([]*Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &Element{c: c, node: n}
	}
	return elements, nil
}

// HTML renders the current content of the container.
func (c *Container) HTML() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var buf bytes.Buffer
	for n := c.root.FirstChild; n != nil; n = n.NextSibling {
		_ = html.Render(&buf, n)
	}
	return buf.String()
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	return e.node.Data
}

// Attribute returns the value of the named attribute and whether it is present.
func (e *Element) Attribute(name string) (string, bool) {
	e.c.mu.RLock()
	defer e.c.mu.RUnlock()

	name = strings.ToLower(name)
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// HasAttribute reports whether the named attribute is present.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.Attribute(name)
	return ok
}

// SetAttribute adds the attribute or replaces its value.
func (e *Element) SetAttribute(name, value string) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	name = strings.ToLower(name)
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttribute removes the attribute if present.
func (e *Element) RemoveAttribute(name string) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	name = strings.ToLower(name)
	attrs := e.node.Attr[:0]
	for _, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		attrs = append(attrs, a)
	}
	e.node.Attr = attrs
}

// ToggleAttribute removes a present attribute or adds it with an empty value,
// and reports whether it is present afterwards.
func (e *Element) ToggleAttribute(name string) bool {
	if e.HasAttribute(name) {
		e.RemoveAttribute(name)
		return false
	}
	e.SetAttribute(name, "")
	return true
}

// Text returns the concatenated text content of the element.
func (e *Element) Text() string {
	e.c.mu.RLock()
	defer e.c.mu.RUnlock()

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return sb.String()
}

// SetText replaces the children of the element with a single text node.
func (e *Element) SetText(text string) {
	e.c.mu.Lock()
	defer e.c.mu.Unlock()

	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
