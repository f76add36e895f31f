package domain

import (
	"errors"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsMatchByCode(t *testing.T) {
	err := NotFound("product")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrDuplicate))

	wrapped := pkgerrors.Wrap(Duplicate("email taken"), "signup")
	assert.True(t, errors.Is(wrapped, ErrDuplicate))
	assert.Equal(t, CodeDuplicate, CodeOf(wrapped))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("boom")))
}

func TestErrorHTTPStatus(t *testing.T) {
	cases := map[*Error]int{
		Validation("amount", "must be positive"): http.StatusBadRequest,
		InvalidLineItem(0, "price required"):     http.StatusBadRequest,
		NotFound("transaction"):                  http.StatusNotFound,
		PermissionDenied("delete"):               http.StatusForbidden,
		Duplicate("x"):                           http.StatusConflict,
		AuthFailed():                             http.StatusUnauthorized,
		CorruptState(nil):                        http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, err.HTTPStatus(), err.Code)
	}
}

func TestLocalizedFallsBackToEnglish(t *testing.T) {
	err := PermissionDenied("delete")
	assert.Equal(t, err.Error(), err.Localized(LanguageEN))
	assert.NotEqual(t, err.Error(), err.Localized(LanguageBN))
}

func TestValidateReportsJSONFieldName(t *testing.T) {
	err := Validate(TransactionCreateRequest{Type: TransactionIncome})
	require.Error(t, err)
	de, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Equal(t, "description", de.Field)

	err = Validate(TransactionCreateRequest{Type: "REFUND", Description: "x"})
	de, _ = AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, "type", de.Field)

	err = Validate(TransactionCreateRequest{Type: TransactionDue, Description: "x", Date: "17/10/2026"})
	de, _ = AsError(err)
	require.NotNil(t, de)
	assert.Equal(t, "date", de.Field)
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("owner@shop.com"))
	assert.False(t, ValidEmail("owner@shop"))
	assert.False(t, ValidEmail("owner shop@x.com"))
	assert.Equal(t, "owner@shop.com", NormalizeEmail("  Owner@Shop.COM "))
}
