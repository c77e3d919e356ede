package extractors

import (
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

// XML extracts the content of the nodes selected by an XPath expression.
// An expression ending in an attribute step (//user/@id) yields the
// attribute values directly.
func XML(document io.Reader, xpath string, options Options) ([]string, error) {
	if strings.TrimSpace(xpath) == "" {
		return nil, fmt.Errorf("xpath is required")
	}
	doc, err := xmlquery.Parse(document)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	nodes, err := xmlquery.QueryAll(doc, xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to execute XPath query: %w", err)
	}
	if len(nodes) == 0 {
		return nil, noMatch("xpath", xpath)
	}

	results := make([]string, 0, len(nodes))
	for _, node := range nodes {
		switch {
		case node.Type == xmlquery.AttributeNode:
			results = append(results, node.InnerText())
		case options.Attribute != "":
			if value, ok := attribute(node, options.Attribute); ok {
				results = append(results, value)
			}
		default:
			results = append(results, nodeContent(node))
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("attribute '%s' not found: %w", options.Attribute, ErrNoMatch)
	}
	return firstOrAll(results, options.All), nil
}

func attribute(node *xmlquery.Node, name string) (string, bool) {
	for _, attr := range node.Attr {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// nodeContent returns the trimmed direct text of an element, ignoring the
// text of nested elements.
func nodeContent(node *xmlquery.Node) string {
	switch node.Type {
	case xmlquery.ElementNode:
		var sb strings.Builder
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.TextNode || child.Type == xmlquery.CharDataNode {
				sb.WriteString(child.Data)
			}
		}
		return strings.TrimSpace(sb.String())
	case xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.CommentNode:
		return strings.TrimSpace(node.Data)
	default:
		return strings.TrimSpace(node.InnerText())
	}
}
