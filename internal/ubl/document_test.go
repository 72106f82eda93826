package ubl_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/ubl"
)

const foreignPrefixes = `<?xml version="1.0"?>
<inv:Invoice xmlns:inv="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
  xmlns:a="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
  xmlns:b="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <b:ID>X-1</b:ID>
  <a:AccountingSupplierParty>
    <a:Party><a:PartyLegalEntity><b:RegistrationName>Seller</b:RegistrationName></a:PartyLegalEntity></a:Party>
  </a:AccountingSupplierParty>
  <a:InvoiceLine><b:ID>1</b:ID></a:InvoiceLine>
  <a:InvoiceLine><b:ID>2</b:ID></a:InvoiceLine>
</inv:Invoice>`

func TestFind_ResolvesByNamespace(t *testing.T) {
	doc, err := ubl.ParseDocument([]byte(foreignPrefixes))
	require.NoError(t, err)

	assert.Equal(t, "X-1", doc.Text("cbc:ID"))
	assert.Equal(t, "Seller", doc.Text("cac:AccountingSupplierParty/cac:Party/cac:PartyLegalEntity/cbc:RegistrationName"))
	assert.Len(t, doc.FindAll("cac:InvoiceLine"), 2)
	assert.Len(t, doc.FindAll("cac:InvoiceLine/cbc:ID"), 2)
	assert.Nil(t, doc.Find("cac:TaxTotal"))
	assert.Empty(t, doc.Text("cac:TaxTotal/cbc:TaxAmount"))
}

func TestFind_WrongNamespaceDoesNotMatch(t *testing.T) {
	doc, err := ubl.ParseDocument([]byte(`<Invoice xmlns="urn:other"><ID>1</ID></Invoice>`))
	require.NoError(t, err)
	assert.Nil(t, doc.Find("cbc:ID"))
}

func TestParseDocument_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unclosed", "<Invoice><cbc:ID>1</cbc:ID>"},
		{"not xml", "hello world"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ubl.ParseDocument([]byte(tt.data))
			require.Error(t, err)
			var parseErr *model.ParseError
			assert.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestEmptyDocument_NilSafe(t *testing.T) {
	doc := ubl.EmptyDocument()
	assert.Nil(t, doc.Root())
	assert.Nil(t, doc.Find("cbc:ID"))
	assert.Empty(t, doc.FindAll("cac:InvoiceLine"))
	assert.Empty(t, doc.Text("cbc:ID"))
	assert.Empty(t, doc.EmbeddedQR())

	_, err := doc.Hash()
	assert.Error(t, err)
}

func TestHash_IgnoresWhitespaceAndQR(t *testing.T) {
	inv, err := model.NewInvoice(testRequest())
	require.NoError(t, err)
	data, err := ubl.Build(inv)
	require.NoError(t, err)

	doc, err := ubl.ParseDocument(data)
	require.NoError(t, err)
	hash, err := doc.Hash()
	require.NoError(t, err)
	assert.Len(t, hash, 44)

	// same document serialized without indentation
	compact := doc.Copy()
	ubl.StripWhitespace(compact.Root())
	compactHash, err := compact.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, compactHash)

	// replacing the QR payload does not change the hash
	changed := doc.Copy()
	ubl.RemoveChildrenFunc(changed.Root(), ubl.IsQRReference)
	changed.Root().InsertChildAt(0, ubl.NewQRReference("AQFY"))
	changedHash, err := changed.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, changedHash)

	// changing content does
	edited := doc.Copy()
	edited.Find("cbc:ID").SetText("INV-002")
	editedHash, err := edited.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, hash, editedHash)
}

func TestCanonicalForm_ExcludesSignatureParts(t *testing.T) {
	inv, err := model.NewInvoice(testRequest())
	require.NoError(t, err)
	doc, err := ubl.BuildDocument(inv)
	require.NoError(t, err)

	before, err := doc.CanonicalForm()
	require.NoError(t, err)

	ext := doc.Root().CreateElement("ext:UBLExtensions")
	ext.CreateElement("ext:UBLExtension")
	doc.Root().CreateElement("cac:Signature").CreateElement("cbc:ID").SetText("sig")

	after, err := doc.CanonicalForm()
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.NotContains(t, string(after), "UBLExtensions")
	assert.NotContains(t, string(after), "AdditionalDocumentReference")
}
