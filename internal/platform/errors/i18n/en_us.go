package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeRequestInvalid               = "REQUEST_INVALID"
	CodeLeaderBonusInvalid           = "LEADER_BONUS_INVALID"
	CodePlayerNotFound               = "PLAYER_NOT_FOUND"
	CodePlayerExists                 = "PLAYER_ALREADY_EXISTS"
	CodeStackNotFound                = "STACK_NOT_FOUND"
	CodeStackNotOwner                = "STACK_NOT_OWNER"
	CodeBaseNotFound                 = "BASE_NOT_FOUND"
	CodeFusionTierMismatch           = "FUSION_TIER_MISMATCH"
	CodeFusionSelfInsufficientCopies = "FUSION_SELF_INSUFFICIENT_COPIES"
	CodeFusionMaxTierExceeded        = "FUSION_MAX_TIER_EXCEEDED"
	CodeFusionInvalidElementCombo    = "FUSION_INVALID_ELEMENT_COMBINATION"
	CodeFusionGuaranteeUnavailable   = "FUSION_GUARANTEE_UNAVAILABLE"
	CodeFusionEmptyStack             = "FUSION_EMPTY_STACK"
	CodeAwakeningMaxLevel            = "AWAKENING_MAX_LEVEL"
	CodeAwakeningInsufficientCopies  = "AWAKENING_INSUFFICIENT_COPIES"
	CodeFragmentInvalidKey           = "FRAGMENT_INVALID_KEY"
	CodeFragmentInvalidAmount        = "FRAGMENT_INVALID_AMOUNT"
	CodeCurrencyInvalidAmount        = "CURRENCY_INVALID_AMOUNT"
	CodeInsufficientFunds            = "INSUFFICIENT_FUNDS"
	CodeInsufficientFragments        = "INSUFFICIENT_FRAGMENTS"
	CodeEngineInvariantViolation     = "ENGINE_INVARIANT_VIOLATION"
	CodeListFilterInvalid            = "LIST_FILTER_INVALID"
	CodeListPageTokenInvalid         = "LIST_PAGE_TOKEN_INVALID"
)

var enUSCatalog = &Catalog{
	locale: BaseLocale,
	messages: map[Code]string{
		CodeRequestInvalid:               "That request has a missing or invalid {{.Field}}.",
		CodeLeaderBonusInvalid:           "Your leader bonus could not be applied.",
		CodePlayerNotFound:               "You have not started your journey yet.",
		CodePlayerExists:                 "You already have a profile.",
		CodeStackNotFound:                "That Esprit could not be found in your collection.",
		CodeStackNotOwner:                "That Esprit belongs to someone else.",
		CodeBaseNotFound:                 "No such Esprit exists.",
		CodeFusionTierMismatch:           "Both Esprits must be the same tier to fuse (tier {{.TierA}} vs tier {{.TierB}}).",
		CodeFusionSelfInsufficientCopies: "You need at least 2 copies to fuse an Esprit with itself.",
		CodeFusionMaxTierExceeded:        "Tier {{.Tier}} Esprits cannot be fused any further.",
		CodeFusionInvalidElementCombo:    "{{.ElementA}} and {{.ElementB}} cannot be fused together.",
		CodeFusionGuaranteeUnavailable:   "Fragments cannot guarantee this fusion because its element is random.",
		CodeFusionEmptyStack:             "One of these Esprits has no copies left.",
		CodeAwakeningMaxLevel:            "This Esprit is already fully awakened.",
		CodeAwakeningInsufficientCopies:  "You need {{.Needed}} copies to awaken this Esprit but only have {{.Balance}}.",
		CodeFragmentInvalidKey:           "Unknown fragment type.",
		CodeFragmentInvalidAmount:        "Fragment amounts must be positive.",
		CodeCurrencyInvalidAmount:        "Currency amounts must be positive.",
		CodeInsufficientFunds:            "You need {{.Cost}} coins but only have {{.Balance}}.",
		CodeInsufficientFragments:        "You need {{.Needed}} {{.Key}} fragments but only have {{.Balance}}.",
		CodeEngineInvariantViolation:     "Something went wrong in the forge. Nothing was spent.",
		CodeListFilterInvalid:            "That collection filter is not valid.",
		CodeListPageTokenInvalid:         "That page is no longer available.",
	},
}
