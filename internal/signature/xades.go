package signature

import (
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/fatoora/internal/ubl"
)

// Identifiers and algorithm URIs of the enveloped XAdES signature
const (
	SignatureID         = "signature"
	SignedPropertiesID  = "xadesSignedProperties"
	InvoiceReferenceID  = "invoiceSignedData"
	DigestMethodSHA256  = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformXPath      = "http://www.w3.org/TR/1999/REC-xpath-19991116"
	SignaturePropsType  = "http://www.w3.org/2000/09/xmldsig#SignatureProperties"
	ExcludeExtensions   = "not(//ancestor-or-self::ext:UBLExtensions)"
	UBLSignatureID      = "urn:oasis:names:specification:ubl:signature:Invoice"
	UBLSignatureMethod  = "urn:oasis:names:specification:ubl:dsig:enveloped:xades"
	SigningTimeLayout   = "2006-01-02T15:04:05Z"
	signedPropertiesRef = "#" + SignedPropertiesID
)

// signedPropertiesInput is what the XAdES SignedProperties certify
type signedPropertiesInput struct {
	SigningTime       time.Time
	CertificateDigest string
	// Certificate is nil when the certificate could not be parsed
	Certificate *Certificate
}

// newSignedProperties builds xades:SignedProperties. It declares its own
// namespaces so it canonicalizes the same detached and in place.
func newSignedProperties(in signedPropertiesInput) *etree.Element {
	props := etree.NewElement("xades:SignedProperties")
	props.CreateAttr("xmlns:xades", ubl.NamespaceXAdES)
	props.CreateAttr("xmlns:ds", ubl.NamespaceDS)
	props.CreateAttr("Id", SignedPropertiesID)

	sigProps := props.CreateElement("xades:SignedSignatureProperties")
	sigProps.CreateElement("xades:SigningTime").SetText(in.SigningTime.UTC().Format(SigningTimeLayout))

	cert := sigProps.CreateElement("xades:SigningCertificate").CreateElement("xades:Cert")
	certDigest := cert.CreateElement("xades:CertDigest")
	certDigest.CreateElement("ds:DigestMethod").CreateAttr(dsig.AlgorithmAttr, DigestMethodSHA256)
	certDigest.CreateElement("ds:DigestValue").SetText(in.CertificateDigest)

	if c := in.Certificate; c != nil {
		issuerSerial := cert.CreateElement("xades:IssuerSerial")
		issuerSerial.CreateElement("ds:X509IssuerName").SetText(c.Issuer.String())
		issuerSerial.CreateElement("ds:X509SerialNumber").SetText(c.SerialNumber.String())
	}
	return props
}

// newSignedInfo builds ds:SignedInfo over the document and the signed properties
func newSignedInfo(documentDigest, propertiesDigest string) *etree.Element {
	info := etree.NewElement("ds:SignedInfo")
	info.CreateAttr("xmlns:ds", ubl.NamespaceDS)

	info.CreateElement("ds:CanonicalizationMethod").
		CreateAttr(dsig.AlgorithmAttr, dsig.CanonicalXML10ExclusiveAlgorithmId.String())
	info.CreateElement("ds:SignatureMethod").
		CreateAttr(dsig.AlgorithmAttr, dsig.ECDSASHA256SignatureMethod)

	docRef := info.CreateElement("ds:Reference")
	docRef.CreateAttr("Id", InvoiceReferenceID)
	docRef.CreateAttr(dsig.URIAttr, "")
	transform := docRef.CreateElement("ds:Transforms").CreateElement("ds:Transform")
	transform.CreateAttr(dsig.AlgorithmAttr, TransformXPath)
	transform.CreateElement("ds:XPath").SetText(ExcludeExtensions)
	docRef.CreateElement("ds:DigestMethod").CreateAttr(dsig.AlgorithmAttr, DigestMethodSHA256)
	docRef.CreateElement("ds:DigestValue").SetText(documentDigest)

	propsRef := info.CreateElement("ds:Reference")
	propsRef.CreateAttr("Type", SignaturePropsType)
	propsRef.CreateAttr(dsig.URIAttr, signedPropertiesRef)
	propsRef.CreateElement("ds:DigestMethod").CreateAttr(dsig.AlgorithmAttr, DigestMethodSHA256)
	propsRef.CreateElement("ds:DigestValue").SetText(propertiesDigest)

	return info
}

// newSignatureBlock assembles ds:Signature from its already digested parts
func newSignatureBlock(signedInfo *etree.Element, signatureValue, certificate string, signedProps *etree.Element) *etree.Element {
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", ubl.NamespaceDS)
	sig.CreateAttr("Id", SignatureID)

	sig.AddChild(signedInfo)
	sig.CreateElement("ds:SignatureValue").SetText(signatureValue)
	sig.CreateElement("ds:KeyInfo").CreateElement("ds:X509Data").CreateElement("ds:X509Certificate").SetText(certificate)

	qualifying := sig.CreateElement("ds:Object").CreateElement("xades:QualifyingProperties")
	qualifying.CreateAttr("xmlns:xades", ubl.NamespaceXAdES)
	qualifying.CreateAttr("Target", SignatureID)
	qualifying.AddChild(signedProps)
	return sig
}

// newExtensions wraps the signature in ext:UBLExtensions
func newExtensions(extPrefix string, signature *etree.Element) *etree.Element {
	exts := etree.NewElement(extPrefix + ":UBLExtensions")
	ext := exts.CreateElement(extPrefix + ":UBLExtension")
	ext.CreateElement(extPrefix + ":ExtensionURI").SetText(UBLSignatureMethod)
	ext.CreateElement(extPrefix + ":ExtensionContent").AddChild(signature)
	return exts
}

// newUBLSignature builds the cac:Signature pointer element
func newUBLSignature(cacPrefix, cbcPrefix string) *etree.Element {
	sig := etree.NewElement(cacPrefix + ":Signature")
	sig.CreateElement(cbcPrefix + ":ID").SetText(UBLSignatureID)
	sig.CreateElement(cbcPrefix + ":SignatureMethod").SetText(UBLSignatureMethod)
	return sig
}
