package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, VAL, INT) and XXX is a three-digit numeric code.
//
// Error codes are designed to be:
//   - Stable: Codes do not change once assigned
//   - Unique: Each error condition has a distinct code
//   - Searchable: Codes can be used to find documentation and solutions
//   - Machine-readable: Suitable for automated error handling
type Code string

// Error code categories and their ranges:
//
//	VAL_xxx   - Validation errors (400 Bad Request)
//	AUTH_xxx  - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx - Authorization errors (403 Forbidden)
//	INT_xxx   - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Service unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400
	// Used when a token's contents fail validation rules. These errors are
	// safe to describe in detail since they reflect the caller's own token.

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeClaimMissing indicates a required claim is absent from the token.
	CodeClaimMissing Code = "VAL_002"

	// CodeClaimFormat indicates a claim is present but has the wrong shape
	// or type (e.g., allowed roles is not a list of strings).
	CodeClaimFormat Code = "VAL_003"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// Used when a credential is missing, unusable, or cannot be verified.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeMissingCredential indicates no credential was found in any
	// configured location and no unauthenticated fallback role is set.
	CodeMissingCredential Code = "AUTH_002"

	// CodeMalformedCredential indicates a credential was present but could
	// not be parsed (e.g., an Authorization header without the Bearer scheme).
	CodeMalformedCredential Code = "AUTH_003"

	// CodeAmbiguousCredential indicates more than one presented credential
	// matched a configured token source simultaneously.
	CodeAmbiguousCredential Code = "AUTH_004"

	// CodeIssuerMismatch indicates credentials were present but none of them
	// was issued for any configured token source.
	CodeIssuerMismatch Code = "AUTH_005"

	// CodeCouldNotVerify indicates cryptographic or temporal verification
	// failed. The message is deliberately uniform: callers are never told
	// which individual check failed.
	CodeCouldNotVerify Code = "AUTH_006"

	// Authorization errors (AUTHZ_xxx) - HTTP 403
	// Used when the authenticated caller asked for something it may not have.

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeRoleNotAllowed indicates the requested role is not a member of
	// the token's allowed-roles list.
	CodeRoleNotAllowed Code = "AUTHZ_002"

	// Internal errors (INT_xxx) - HTTP 500
	// Used for unexpected internal failures.

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeConfiguration indicates a malformed or inconsistent configuration.
	// Configuration errors are fatal at startup.
	CodeConfiguration Code = "INT_002"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Used when a dependency is temporarily unavailable.

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependent service (e.g., a JWKS
	// endpoint) is unavailable.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504
	// Used when an operation exceeds its time limit.

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "VAL", "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
