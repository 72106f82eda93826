// Package ubl builds and reads UBL 2.1 invoice documents.
package ubl

// UBL 2.1 and XML signature namespaces
const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
	NamespaceDS      = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES   = "http://uri.etsi.org/01903/v1.3.2#"
)

// Namespaces maps the conventional prefixes to namespace URIs.
// Paths passed to Find and friends use these prefixes regardless of
// the prefixes declared by the document itself.
var Namespaces = map[string]string{
	"":      NamespaceInvoice,
	"cac":   NamespaceCAC,
	"cbc":   NamespaceCBC,
	"ext":   NamespaceEXT,
	"ds":    NamespaceDS,
	"xades": NamespaceXAdES,
}

// ProfileID is the business process identifier written into every document
const ProfileID = "reporting:1.0"

// QRReferenceID is the cbc:ID of the AdditionalDocumentReference carrying the QR payload
const QRReferenceID = "QR"
