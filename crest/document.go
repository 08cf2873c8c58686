package crest

// Document is one decoded CREST resource. Every entry is either a link ({"href": ...})
// or a terminal value.
type Document map[string]any

// NodeKind tags what a document entry holds.
type NodeKind int

const (
	NodeMissing NodeKind = iota
	NodeLink
	NodeLeaf
)

func (k NodeKind) String() string {
	switch k {
	case NodeLink:
		return "link"
	case NodeLeaf:
		return "leaf"
	default:
		return "missing"
	}
}

// Node is a single document entry.
type Node struct {
	Kind  NodeKind
	Href  string // set for NodeLink
	Value any    // set for NodeLeaf
}

// Node looks up name and classifies it. A map carrying a non-empty string "href" is a link.
func (d Document) Node(name string) Node {
	v, ok := d[name]
	if !ok {
		return Node{Kind: NodeMissing}
	}
	if m, ok := asMap(v); ok {
		if href, ok := m["href"].(string); ok && href != "" {
			return Node{Kind: NodeLink, Href: href}
		}
	}
	return Node{Kind: NodeLeaf, Value: v}
}

// Sub returns the entry under name as a Document when it is an object.
func (d Document) Sub(name string) (Document, bool) {
	return asMap(d[name])
}

func asMap(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, m != nil
	case map[string]any:
		return Document(m), m != nil
	default:
		return nil, false
	}
}
