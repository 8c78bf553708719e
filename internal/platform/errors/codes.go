// Package errors provides structured error handling with i18n support.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeRequestInvalid     Code = "REQUEST_INVALID"
	CodeLeaderBonusInvalid Code = "LEADER_BONUS_INVALID"

	// Lookup errors
	CodePlayerNotFound Code = "PLAYER_NOT_FOUND"
	CodePlayerExists   Code = "PLAYER_ALREADY_EXISTS"
	CodeStackNotFound  Code = "STACK_NOT_FOUND"
	CodeStackNotOwner  Code = "STACK_NOT_OWNER"
	CodeBaseNotFound   Code = "BASE_NOT_FOUND"

	// Fusion errors
	CodeFusionTierMismatch           Code = "FUSION_TIER_MISMATCH"
	CodeFusionSelfInsufficientCopies Code = "FUSION_SELF_INSUFFICIENT_COPIES"
	CodeFusionMaxTierExceeded        Code = "FUSION_MAX_TIER_EXCEEDED"
	CodeFusionInvalidElementCombo    Code = "FUSION_INVALID_ELEMENT_COMBINATION"
	CodeFusionGuaranteeUnavailable   Code = "FUSION_GUARANTEE_UNAVAILABLE"
	CodeFusionEmptyStack             Code = "FUSION_EMPTY_STACK"
	CodeAwakeningMaxLevel            Code = "AWAKENING_MAX_LEVEL"
	CodeAwakeningInsufficientCopies  Code = "AWAKENING_INSUFFICIENT_COPIES"
	CodeFragmentInvalidKey           Code = "FRAGMENT_INVALID_KEY"
	CodeFragmentInvalidAmount        Code = "FRAGMENT_INVALID_AMOUNT"
	CodeCurrencyInvalidAmount        Code = "CURRENCY_INVALID_AMOUNT"
	CodeInsufficientFunds            Code = "INSUFFICIENT_FUNDS"
	CodeInsufficientFragments        Code = "INSUFFICIENT_FRAGMENTS"
	CodeEngineInvariantViolation     Code = "ENGINE_INVARIANT_VIOLATION"
	CodeCatalogInvalid               Code = "CATALOG_INVALID"
	CodeListFilterInvalid            Code = "LIST_FILTER_INVALID"
	CodeListPageTokenInvalid         Code = "LIST_PAGE_TOKEN_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - the request can never succeed as written
	case CodeRequestInvalid,
		CodeLeaderBonusInvalid,
		CodeFusionTierMismatch,
		CodeFusionInvalidElementCombo,
		CodeFragmentInvalidKey,
		CodeFragmentInvalidAmount,
		CodeCurrencyInvalidAmount,
		CodeListFilterInvalid,
		CodeListPageTokenInvalid:
		return codes.InvalidArgument

	// FailedPrecondition - current state doesn't allow the operation
	case CodeFusionSelfInsufficientCopies,
		CodeFusionMaxTierExceeded,
		CodeFusionGuaranteeUnavailable,
		CodeFusionEmptyStack,
		CodeAwakeningMaxLevel,
		CodeAwakeningInsufficientCopies,
		CodeInsufficientFunds,
		CodeInsufficientFragments:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodePlayerNotFound,
		CodeStackNotFound,
		CodeBaseNotFound:
		return codes.NotFound

	// PermissionDenied - resource belongs to someone else
	case CodeStackNotOwner:
		return codes.PermissionDenied

	// AlreadyExists - unique resource constraint
	case CodePlayerExists:
		return codes.AlreadyExists

	default:
		return codes.Internal
	}
}

// IsResource reports whether the code describes a balance shortfall rather
// than a malformed request.
func (c Code) IsResource() bool {
	return c == CodeInsufficientFunds || c == CodeInsufficientFragments
}
