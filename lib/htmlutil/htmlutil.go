package htmlutil

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		// newlines in markup are just whitespace, only <br> and block
		// elements produce line breaks in rendered text
		buffer.WriteString(markupNewlines.Replace(node.Data))
		return
	}
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteString("\n")
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
	if node.Type == html.ElementNode && blockElements[node.Data] {
		buffer.WriteString("\n")
	}
}

var markupNewlines = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

var blockElements = map[string]bool{
	"p":   true,
	"div": true,
	"li":  true,
	"tr":  true,
}

var innerWhitespace = regexp.MustCompile(`[ \t\r\f\v]+`)
var blankLines = regexp.MustCompile(`\n\s*\n+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if c == '\n' || unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// NormalizeText collapses runs of whitespace the way a browser renders them,
// line breaks are kept but blank lines and surrounding spaces are not.
func NormalizeText(text string) string {
	text = removeNonPrintable(text)
	text = innerWhitespace.ReplaceAllString(text, " ")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n")
	return strings.Trim(text, " \n")
}

// Text returns the normalized text of every node in the selection.
func Text(sel *goquery.Selection) string {
	var buffer bytes.Buffer
	for _, n := range sel.Nodes {
		getTextRecursive(n, &buffer)
	}
	return NormalizeText(buffer.String())
}

type Anchor struct {
	Name string
	Url  *url.URL
}

// GetAnchors resolves the href of every anchor in the selection against `base`,
// anchors without a parseable href are skipped.
func GetAnchors(base *url.URL, sel *goquery.Selection) []Anchor {
	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		if href == "" {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		anchors = append(anchors, Anchor{
			Name: NormalizeText(GetText(n)),
			Url:  link,
		})
	}

	return anchors
}

// Pair is a header cell and the data cell that goes with it.
type Pair struct {
	Key   string
	Value string
}

// TablePairs zips the text of every `th` in the table with the text of every
// `td` in it, in document order. excess cells on either side are dropped.
func TablePairs(table *goquery.Selection) []Pair {
	headers := table.Find("th")
	data := table.Find("td")

	n := headers.Length()
	if data.Length() < n {
		n = data.Length()
	}

	pairs := make([]Pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = Pair{
			Key:   Text(headers.Eq(i)),
			Value: Text(data.Eq(i)),
		}
	}
	return pairs
}
