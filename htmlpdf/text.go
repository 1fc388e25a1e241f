package htmlpdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Sanitize removes scripts, event handlers and other active content with the
// bluemonday UGC policy and returns a complete document whose <base> points
// at baseHref, so relative images still resolve.
func Sanitize(doc, baseHref string) (string, error) {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AllowURLSchemes("http", "https", "file", "data")
	p.AllowStyling()
	clean := p.Sanitize(doc)

	root, err := html.Parse(strings.NewReader(clean))
	if err != nil {
		return "", err
	}
	head := findElement(root, atom.Head)
	if head == nil {
		return "", fmt.Errorf("no <head> in parsed document")
	}
	baseNode := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Base,
		Data:     "base",
		Attr:     []html.Attribute{{Key: "href", Val: baseHref}},
	}
	head.InsertBefore(baseNode, head.FirstChild)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// ToMarkdown converts an HTML document to Markdown text. Used when the page
// cannot be rendered by a browser.
func ToMarkdown(doc string) (string, error) {
	md, err := mdConverter.ConvertString(doc)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}

// FileToMarkdown reads the HTML file at path and converts it with ToMarkdown.
func FileToMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	md, err := ToMarkdown(string(data))
	if err != nil {
		return "", fmt.Errorf("htmlpdf: markdown %s: %w", path, err)
	}
	return md, nil
}
