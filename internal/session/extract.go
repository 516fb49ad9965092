package session

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// tokenPrefix marks the framework's hidden fields.
const tokenPrefix = "__"

// Parse reads an HTML page and returns the continuation tokens it carries,
// bound to sessionID. Only hidden inputs whose names start with "__" are
// collected; the portal's own inputs are rebuilt by the query builder.
func Parse(r io.Reader, sessionID string) (State, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return State{}, err
	}

	fields := make([]Field, 0, 8)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" {
			name := getAttr(n, "name")
			if strings.HasPrefix(name, tokenPrefix) && strings.EqualFold(getAttr(n, "type"), "hidden") {
				fields = append(fields, Field{Name: name, Value: getAttr(n, "value")})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return New(fields, sessionID), nil
}

// ParseBytes is a convenience wrapper around Parse.
func ParseBytes(body []byte, sessionID string) (State, error) {
	return Parse(bytes.NewReader(body), sessionID)
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
