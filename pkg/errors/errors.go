// Package errors provides standardized error types and error handling
// utilities for the GraphQL engine. It defines the error categories the
// engine's subsystems reject requests with, stable machine-readable error
// codes, and helper functions for creating, wrapping, and inspecting errors.
//
// # Error Categories
//
// The package defines several error categories that map to common failure
// scenarios:
//
//   - Validation errors: Malformed or missing claims, ill-typed values
//   - Authentication errors: Missing, ambiguous, or unverifiable credentials
//   - Authorization errors: Requested role not allowed
//   - Internal errors: Broken configuration, unexpected system failures
//   - Unavailable errors: A dependency is temporarily unreachable
//   - Timeout errors: Operation exceeded its time limit
//
// # Error Codes
//
// Each error includes a machine-readable code (e.g., "AUTH_006") that can be
// used for error tracking, alerting, and client-side error handling. Error
// codes follow the pattern CATEGORY_XXX where CATEGORY is a short identifier
// and XXX is a numeric code. Codes are stable: once assigned they do not
// change meaning.
//
// # Usage
//
// Create a new error with context:
//
//	err := errors.New(errors.CodeClaimMissing, "token has no x-engine-default-role claim")
//
// Wrap an existing error:
//
//	err := errors.Wrap(err, errors.CodeConfiguration, "failed to parse JWT source config")
//
// Check error category:
//
//	if errors.IsAuthentication(err) {
//	    // render 401
//	}
//
// Extract error details for logging:
//
//	if e, ok := errors.AsError(err); ok {
//	    logger.Error("request rejected",
//	        "code", e.Code,
//	        "message", e.Message,
//	    )
//	}
package errors
