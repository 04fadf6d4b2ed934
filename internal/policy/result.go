package policy

// Outcome is the terminal disposition of a policy evaluation.
type Outcome int

const (
	// Authorized grants every requested scope on every line.
	Authorized Outcome = iota

	// NotAuthorized denies the request outright.
	NotAuthorized

	// RequestSubmitted parks the request pending out-of-band resource-owner
	// approval. Not an error: the caller retries with the same ticket once
	// the owner approves.
	RequestSubmitted

	// NeedInfo asks the caller to present a claim token carrying the listed
	// claims. Not an error either.
	NeedInfo
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case NotAuthorized:
		return "not_authorized"
	case RequestSubmitted:
		return "request_submitted"
	case NeedInfo:
		return "need_info"
	default:
		return "unknown"
	}
}

// RequiredClaim describes one claim a NeedInfo outcome asks the caller to
// obtain, and where from.
type RequiredClaim struct {
	Type         string `json:"type"`
	FriendlyName string `json:"friendly_name"`
	Issuer       string `json:"issuer"`
}

// Result is the tagged outcome of one evaluation. RequiredClaims is
// populated only for NeedInfo.
type Result struct {
	Outcome        Outcome
	RequiredClaims []RequiredClaim
}

func authorized() Result    { return Result{Outcome: Authorized} }
func notAuthorized() Result { return Result{Outcome: NotAuthorized} }
func submitted() Result     { return Result{Outcome: RequestSubmitted} }

func needInfo(claims []RequiredClaim) Result {
	return Result{Outcome: NeedInfo, RequiredClaims: claims}
}
