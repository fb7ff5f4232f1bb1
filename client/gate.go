package client

// IdentityLoadState says whether the current-identity lookup has settled.
type IdentityLoadState int

const (
	IdentityLoading IdentityLoadState = iota
	IdentityLoaded
)

// GateDecision is the outcome of evaluating the authorization gate for a
// protected view.
type GateDecision int

const (
	// DecisionLoading means the identity lookup is still in flight.
	DecisionLoading GateDecision = iota
	// DecisionRedirectLogin means no identity; go authenticate.
	DecisionRedirectLogin
	// DecisionRedirectPending means an identity exists but is not approved.
	DecisionRedirectPending
	// DecisionRender means the protected view may render.
	DecisionRender
)

// String returns the string representation of a GateDecision.
func (d GateDecision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRedirectLogin:
		return "redirect:login"
	case DecisionRedirectPending:
		return "redirect:pending"
	case DecisionRender:
		return "render"
	default:
		return "unknown"
	}
}

// Decide maps the current identity state to a gate decision. It is pure and
// holds no cache, so callers re-evaluate it on every navigation. A nil
// identity with a settled load state means absent, which covers lookup
// failures too: the gate fails closed to the login redirect, never open to
// render.
func Decide(state IdentityLoadState, ident *Identity) GateDecision {
	if state == IdentityLoading {
		return DecisionLoading
	}
	if ident == nil {
		return DecisionRedirectLogin
	}
	if !ident.Approved {
		return DecisionRedirectPending
	}
	return DecisionRender
}

// DecideFromLookup folds a current-identity lookup result into a decision.
// Any lookup error is treated as an absent identity.
func DecideFromLookup(ident *Identity, err error) GateDecision {
	if err != nil {
		return DecisionRedirectLogin
	}
	return Decide(IdentityLoaded, ident)
}
