package scraper

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Titles holds the title candidates found in a document.
type Titles struct {
	// Document is the text of <title>.
	Document string
	// Product is the text of a marketplace product title element
	// (<span id="productTitle">), when present.
	Product string
}

// Best returns the product title when present, otherwise the document title.
func (t Titles) Best() string {
	if t.Product != "" {
		return t.Product
	}
	return t.Document
}

func ParseTitles(body []byte) (Titles, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return Titles{}, fmt.Errorf("parse html: %w", err)
	}

	var t Titles
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "title" && t.Document == "":
				t.Document = cleanText(nodeText(n))
			case n.Data == "span" && attr(n, "id") == "productTitle" && t.Product == "":
				t.Product = cleanText(nodeText(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return t, nil
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
