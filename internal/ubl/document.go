package ubl

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/fatoora/internal/model"
)

// Document is a parsed UBL document.
// All lookups are nil-safe: on an empty Document they find nothing.
type Document struct {
	doc *etree.Document
}

// ParseDocument parses XML bytes into a Document
func ParseDocument(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, model.NewParseError("document", "not well-formed XML", err)
	}
	if doc.Root() == nil {
		return nil, model.NewParseError("document", "no root element", nil)
	}
	return &Document{doc: doc}, nil
}

// EmptyDocument returns a Document with no content
func EmptyDocument() *Document {
	return &Document{doc: etree.NewDocument()}
}

// Root returns the root element, or nil
func (d *Document) Root() *etree.Element {
	if d == nil || d.doc == nil {
		return nil
	}
	return d.doc.Root()
}

// Copy returns a deep copy of the document
func (d *Document) Copy() *Document {
	if d == nil || d.doc == nil {
		return EmptyDocument()
	}
	return &Document{doc: d.doc.Copy()}
}

// Bytes serializes the document, indented with two spaces
func (d *Document) Bytes() ([]byte, error) {
	if d == nil || d.doc == nil {
		return nil, nil
	}
	d.doc.Indent(2)
	return d.doc.WriteToBytes()
}

// Find returns the first element at path below the root
func (d *Document) Find(path string) *etree.Element {
	return FindIn(d.Root(), path)
}

// FindAll returns every element at path below the root
func (d *Document) FindAll(path string) []*etree.Element {
	return FindAllIn(d.Root(), path)
}

// Text returns the trimmed text at path, empty when missing
func (d *Document) Text(path string) string {
	return TextIn(d.Root(), path)
}

// Attr returns the attribute key of the element at path
func (d *Document) Attr(path, key string) string {
	el := d.Find(path)
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(key, "")
}

// QRReference returns the AdditionalDocumentReference whose ID is QR
func (d *Document) QRReference() *etree.Element {
	for _, ref := range d.FindAll("cac:AdditionalDocumentReference") {
		if TextIn(ref, "cbc:ID") == QRReferenceID {
			return ref
		}
	}
	return nil
}

// EmbeddedQR returns the base64 QR payload embedded in the document
func (d *Document) EmbeddedQR() string {
	return TextIn(d.QRReference(), "cac:Attachment/cbc:EmbeddedDocumentBinaryObject")
}

// FindIn resolves a slash-separated path of prefixed names below el.
// Prefixes are looked up in Namespaces, so the document's own prefix
// choice does not matter.
func FindIn(el *etree.Element, path string) *etree.Element {
	if el == nil {
		return nil
	}
	cur := el
	for _, step := range strings.Split(path, "/") {
		cur = childElement(cur, step)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// FindAllIn returns every element matching path below el
func FindAllIn(el *etree.Element, path string) []*etree.Element {
	if el == nil {
		return nil
	}
	frontier := []*etree.Element{el}
	for _, step := range strings.Split(path, "/") {
		var next []*etree.Element
		for _, parent := range frontier {
			for _, child := range parent.ChildElements() {
				if IsElement(child, step) {
					next = append(next, child)
				}
			}
		}
		if len(next) == 0 {
			return nil
		}
		frontier = next
	}
	return frontier
}

// TextIn returns the trimmed text at path below el
func TextIn(el *etree.Element, path string) string {
	found := FindIn(el, path)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// IsElement reports whether el matches a prefixed name such as "cbc:ID"
func IsElement(el *etree.Element, name string) bool {
	if el == nil {
		return false
	}
	prefix, local := splitName(name)
	if el.Tag != local {
		return false
	}
	uri, ok := Namespaces[prefix]
	if !ok {
		return el.Space == prefix
	}
	return el.NamespaceURI() == uri
}

func childElement(el *etree.Element, name string) *etree.Element {
	for _, child := range el.ChildElements() {
		if IsElement(child, name) {
			return child
		}
	}
	return nil
}

func splitName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// RemoveChildren detaches every direct child of el matching name and
// returns how many were removed
func RemoveChildren(el *etree.Element, name string) int {
	return RemoveChildrenFunc(el, func(child *etree.Element) bool {
		return IsElement(child, name)
	})
}

// RemoveChildrenFunc detaches every direct child of el for which match returns true
func RemoveChildrenFunc(el *etree.Element, match func(*etree.Element) bool) int {
	if el == nil {
		return 0
	}
	removed := 0
	for _, child := range el.ChildElements() {
		if match(child) {
			el.RemoveChild(child)
			removed++
		}
	}
	return removed
}

// IsQRReference reports whether el is the QR AdditionalDocumentReference
func IsQRReference(el *etree.Element) bool {
	return IsElement(el, "cac:AdditionalDocumentReference") && TextIn(el, "cbc:ID") == QRReferenceID
}

// EnsureNamespace declares prefix on root when no declaration for it exists.
// Returns the prefix that is bound to uri after the call.
func EnsureNamespace(root *etree.Element, prefix, uri string) string {
	for _, attr := range root.Attr {
		if attr.Space == "xmlns" && attr.Value == uri {
			return attr.Key
		}
	}
	root.CreateAttr("xmlns:"+prefix, uri)
	return prefix
}
