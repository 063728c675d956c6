package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want string
	}{
		{CodeValidation, "VAL"},
		{CodeClaimMissing, "VAL"},
		{CodeCouldNotVerify, "AUTH"},
		{CodeRoleNotAllowed, "AUTHZ"},
		{CodeConfiguration, "INT"},
		{CodeUnavailableDependency, "UNAVAIL"},
		{CodeTimeout, "TIMEOUT"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.Category(), "category of %s", tt.code)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code Code
		want int
	}{
		{"validation maps to 400", CodeClaimFormat, http.StatusBadRequest},
		{"authentication maps to 401", CodeCouldNotVerify, http.StatusUnauthorized},
		{"missing credential maps to 401", CodeMissingCredential, http.StatusUnauthorized},
		{"authorization maps to 403", CodeRoleNotAllowed, http.StatusForbidden},
		{"internal maps to 500", CodeInternal, http.StatusInternalServerError},
		{"unavailable maps to 503", CodeUnavailableDependency, http.StatusServiceUnavailable},
		{"timeout maps to 504", CodeTimeout, http.StatusGatewayTimeout},
		{"unknown category maps to 500", Code("BOGUS_001"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := New(tt.code, "test")
			assert.Equal(t, tt.want, e.HTTPStatus())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	e := New(CodeCouldNotVerify, "could not verify JWT")
	assert.Equal(t, "AUTH_006: could not verify JWT", e.Error())

	wrapped := Wrap(errors.New("signature is invalid"), CodeCouldNotVerify, "could not verify JWT")
	assert.Equal(t, "AUTH_006: could not verify JWT: signature is invalid", wrapped.Error())
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	e := Wrapf(cause, CodeInternal, "operation %s failed", "refresh")

	require.ErrorIs(t, e, cause)
	assert.Equal(t, CodeInternal, e.Code)
	assert.Equal(t, "operation refresh failed", e.Message)
}

func TestAsError(t *testing.T) {
	t.Parallel()

	e := New(CodeRoleNotAllowed, "nope")
	wrapped := fmt.Errorf("outer: %w", e)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeRoleNotAllowed, got.Code)

	_, ok = AsError(errors.New("plain"))
	assert.False(t, ok)

	_, ok = AsError(nil)
	assert.False(t, ok)
}

func TestGetCodeAndHasCode(t *testing.T) {
	t.Parallel()

	e := New(CodeMissingCredential, "no credential")
	assert.Equal(t, CodeMissingCredential, GetCode(e))
	assert.True(t, HasCode(e, CodeMissingCredential))
	assert.False(t, HasCode(e, CodeCouldNotVerify))
	assert.Equal(t, Code(""), GetCode(errors.New("plain")))
}

func TestCategoryChecks(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAuthentication(New(CodeCouldNotVerify, "x")))
	assert.False(t, IsAuthentication(New(CodeRoleNotAllowed, "x")))
	assert.True(t, IsAuthorization(New(CodeRoleNotAllowed, "x")))
	assert.True(t, IsValidation(New(CodeClaimMissing, "x")))
	assert.True(t, IsInternal(New(CodeConfiguration, "x")))
	assert.True(t, IsRetryable(New(CodeUnavailableDependency, "x")))
	assert.False(t, IsRetryable(New(CodeInternal, "x")))
	assert.True(t, IsClientError(New(CodeClaimFormat, "x")))
	assert.True(t, IsServerError(New(CodeTimeout, "x")))
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	t.Parallel()

	base := New(CodeClaimMissing, "missing").WithDetail("claim", "x-engine-default-role")
	extended := base.WithDetails(map[string]any{"path": "$.roles"})

	assert.Len(t, base.Details, 1)
	assert.Len(t, extended.Details, 2)
	assert.Equal(t, "x-engine-default-role", extended.Details["claim"])
}

func TestFromError(t *testing.T) {
	t.Parallel()

	e := New(CodeAmbiguousCredential, "ambiguous")
	assert.Same(t, e, FromError(e))

	converted := FromError(errors.New("plain"))
	require.NotNil(t, converted)
	assert.Equal(t, CodeInternal, converted.Code)
}

func TestFormatVerbose(t *testing.T) {
	t.Parallel()

	e := Wrap(errors.New("root"), CodeInternal, "wrapper")
	out := fmt.Sprintf("%+v", e)
	assert.Contains(t, out, "INT_001")
	assert.Contains(t, out, "root")
}
