package form4

import (
	"bytes"
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html/charset"
)

// EDGAR accepts filings with bare ampersands, HTML entities and unclosed
// <br> tags in free text, so the decoder runs in non-strict mode.
var parserOptions = xmlquery.ParserOptions{Decoder: &xmlquery.DecoderOptions{
	Strict:        false,
	AutoClose:     xml.HTMLAutoClose,
	Entity:        xml.HTMLEntity,
	CharsetReader: charset.NewReaderLabel,
}}

// ParseDocument parses raw filing text into a node tree with every element
// and attribute name lower-cased, so lookups ignore the source casing.
// Documents wrapped in <XML>...</XML> (EDGAR full submissions) are unwrapped.
// Unbalanced element nesting is still an error.
func ParseDocument(raw []byte) (*xmlquery.Node, error) {
	raw = unwrapXML(raw)
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(raw), parserOptions)
	if err != nil {
		return nil, malformed("document", err)
	}
	lowerNames(doc)
	return doc, nil
}

func unwrapXML(raw []byte) []byte {
	start := bytes.Index(raw, []byte("<XML>"))
	if start < 0 {
		return raw
	}
	body := raw[start+len("<XML>"):]
	if end := bytes.Index(body, []byte("</XML>")); end >= 0 {
		body = body[:end]
	}
	return bytes.TrimSpace(body)
}

func lowerNames(n *xmlquery.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			c.Data = strings.ToLower(c.Data)
			for i := range c.Attr {
				c.Attr[i].Name.Local = strings.ToLower(c.Attr[i].Name.Local)
			}
		}
		lowerNames(c)
	}
}

// find returns the first node matching expr below n, or nil.
func find(n *xmlquery.Node, expr string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	node, err := xmlquery.Query(n, expr)
	if err != nil {
		return nil
	}
	return node
}

func findAll(n *xmlquery.Node, expr string) []*xmlquery.Node {
	if n == nil {
		return nil
	}
	nodes, err := xmlquery.QueryAll(n, expr)
	if err != nil {
		return nil
	}
	return nodes
}

// text returns the trimmed inner text of the node at expr, or nil when absent.
func text(n *xmlquery.Node, expr string) *string {
	node := find(n, expr)
	if node == nil {
		return nil
	}
	s := strings.TrimSpace(node.InnerText())
	return &s
}

// float parses the node at expr. Absent or empty stays nil; present but
// unparseable text is a structural error.
func float(n *xmlquery.Node, expr string) (*float64, error) {
	s := text(n, expr)
	if s == nil || *s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil, malformed(expr, err)
	}
	return &f, nil
}

// flag is true only for the exact text "1".
func flag(n *xmlquery.Node, expr string) bool {
	node := find(n, expr)
	return node != nil && node.InnerText() == "1"
}
