package validator

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addRequest struct {
	Slug     string `json:"slug" validate:"required,slug"`
	Quantity int    `json:"quantity" validate:"min=1,max=999"`
	Variant  string `json:"variant" validate:"max=50"`
}

func (a *addRequest) DecodeForm(v url.Values) error {
	a.Slug = v.Get("slug")
	a.Variant = v.Get("variant")
	if q := v.Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return err
		}
		a.Quantity = n
	}
	return nil
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(addRequest{Slug: "lamp-3", Quantity: 2}))
}

func TestValidate_UsesTagNames(t *testing.T) {
	fields := fieldsOf(t, Validate(addRequest{Quantity: 1}))

	assert.Equal(t, "is required", fields["slug"])
}

func TestValidate_SlugTag(t *testing.T) {
	fields := fieldsOf(t, Validate(addRequest{Slug: "../etc", Quantity: 1}))

	assert.Equal(t, "must be a valid slug", fields["slug"])
}

func TestValidate_NumericBounds(t *testing.T) {
	fields := fieldsOf(t, Validate(addRequest{Slug: "lamp-3", Quantity: 1000}))
	assert.Equal(t, "must be at most 999", fields["quantity"])

	fields = fieldsOf(t, Validate(addRequest{Slug: "lamp-3", Quantity: 0}))
	assert.Equal(t, "must be at least 1", fields["quantity"])
}

func TestValidate_StringLength(t *testing.T) {
	fields := fieldsOf(t, Validate(addRequest{Slug: "lamp-3", Quantity: 1, Variant: strings.Repeat("x", 51)}))

	assert.Equal(t, "must be at most 50 characters", fields["variant"])
}

func TestValidationError_Message(t *testing.T) {
	var valErr *ValidationError
	require.ErrorAs(t, Validate(addRequest{Slug: "lamp-3", Quantity: 0}), &valErr)

	assert.Equal(t, "Quantity must be at least 1.", valErr.Message())
	assert.Contains(t, valErr.Error(), "field 'quantity'")
}

func TestDecodeAndValidate_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"slug":"lamp-3","quantity":2}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	var a addRequest
	require.NoError(t, DecodeAndValidate(req, &a))
	assert.Equal(t, 2, a.Quantity)
}

func TestDecodeAndValidate_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{invalid"))
	req.Header.Set("Content-Type", "application/json")

	var a addRequest
	err := DecodeAndValidate(req, &a)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_Form(t *testing.T) {
	form := url.Values{"slug": {"chair-1"}, "quantity": {"3"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var a addRequest
	require.NoError(t, DecodeAndValidate(req, &a))
	assert.Equal(t, "chair-1", a.Slug)
	assert.Equal(t, 3, a.Quantity)
}

func TestDecodeAndValidate_FormBadNumber(t *testing.T) {
	form := url.Values{"slug": {"chair-1"}, "quantity": {"many"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var a addRequest
	err := DecodeAndValidate(req, &a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_FormWithoutDecoder(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var dst struct{ A string }
	assert.Error(t, DecodeAndValidate(req, &dst))
}
