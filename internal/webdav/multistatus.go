package webdav

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"
)

// davNamespace is the canonical WebDAV XML namespace. Servers bind it to
// wildly different prefixes (d:, D:, oc-style custom prefixes) or omit the
// declaration entirely; the decoder resolves any bound prefix to this URI,
// and undeclared/unprefixed elements resolve to an empty namespace. Both
// forms are accepted everywhere.
const davNamespace = "DAV:"

// rawRecord is one multistatus response element after namespace
// normalization: the href still percent-encoded, the winning propstat's
// status line, and a flat map of lower-cased property names to their
// element subtrees.
type rawRecord struct {
	href   string
	status string
	props  propMap
}

// propMap maps lower-cased, namespace-stripped property names to their
// element subtrees.
type propMap map[string]*xmlNode

func (p propMap) text(local string) string {
	if n, ok := p[local]; ok {
		return strings.TrimSpace(n.text)
	}
	return ""
}

// xmlNode is a generic element-tree node. Property values are kept as
// subtrees because some properties (resourcetype) carry marker children
// rather than text.
type xmlNode struct {
	name     xml.Name
	children []*xmlNode
	text     string
}

func isDAV(name xml.Name, local string) bool {
	if name.Space != davNamespace && name.Space != "" {
		return false
	}
	return strings.EqualFold(name.Local, local)
}

func (n *xmlNode) child(local string) *xmlNode {
	for _, c := range n.children {
		if isDAV(c.name, local) {
			return c
		}
	}
	return nil
}

func (n *xmlNode) childAll(local string) []*xmlNode {
	var out []*xmlNode
	for _, c := range n.children {
		if isDAV(c.name, local) {
			out = append(out, c)
		}
	}
	return out
}

func (n *xmlNode) childText(local string) string {
	if c := n.child(local); c != nil {
		return strings.TrimSpace(c.text)
	}
	return ""
}

// parseMultistatus decodes a multistatus response body into normalized
// records, in document order.
func parseMultistatus(r io.Reader) ([]rawRecord, error) {
	root, err := parseDocument(r)
	if err != nil {
		return nil, &ParseError{Reason: "malformed XML: " + err.Error()}
	}
	if root == nil || !isDAV(root.name, "multistatus") {
		return nil, &ParseError{Reason: "multistatus root element not found"}
	}

	var records []rawRecord
	for _, resp := range root.childAll("response") {
		rec := rawRecord{
			href:  resp.childText("href"),
			props: propMap{},
		}

		if ps := pickPropstat(resp.childAll("propstat")); ps != nil {
			rec.status = ps.childText("status")
			if prop := ps.child("prop"); prop != nil {
				for _, field := range prop.children {
					if field.name.Space != davNamespace && field.name.Space != "" {
						continue
					}
					rec.props[strings.ToLower(field.name.Local)] = field
				}
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

// pickPropstat selects the propstat block carrying a 2xx status line;
// partial-success responses pair found properties with 200 and missing
// ones with 404. Falls back to the first block.
func pickPropstat(blocks []*xmlNode) *xmlNode {
	for _, b := range blocks {
		if statusOK(b.childText("status")) {
			return b
		}
	}
	if len(blocks) > 0 {
		return blocks[0]
	}
	return nil
}

// statusOK reports whether a status line such as "HTTP/1.1 200 OK"
// carries a 2xx code.
func statusOK(status string) bool {
	for _, field := range strings.Fields(status) {
		if code, err := strconv.Atoi(field); err == nil {
			return code >= 200 && code < 300
		}
	}
	return false
}

// parseDocument reads the full token stream into an element tree.
func parseDocument(r io.Reader) (*xmlNode, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return parseElement(dec, start)
		}
	}
}

func parseElement(dec *xml.Decoder, start xml.StartElement) (*xmlNode, error) {
	node := &xmlNode{name: start.Name}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := parseElement(dec, t)
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, child)
		case xml.CharData:
			node.text += string(t)
		case xml.EndElement:
			return node, nil
		}
	}
}
