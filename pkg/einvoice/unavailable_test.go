//go:build nosecp256k1

package einvoice_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/pkg/einvoice"
)

func TestSigningUnavailable(t *testing.T) {
	var missing *einvoice.MissingSigningMaterialError
	require.True(t, errors.As(einvoice.SigningAvailable(), &missing))

	doc, err := einvoice.BuildDocument(invoiceRequest("INV-100"))
	require.NoError(t, err)
	assert.True(t, einvoice.Validate(doc).Valid)

	_, err = einvoice.Sign(doc, nil, nil)
	assert.True(t, errors.As(err, &missing))
	_, err = einvoice.Verify(doc)
	assert.True(t, errors.As(err, &missing))
}
