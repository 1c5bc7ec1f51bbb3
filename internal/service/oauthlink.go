package service

import (
	"time"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/oauth"
)

// LinkAction is what a Resolution asks the caller to persist.
type LinkAction int

const (
	// ActionRejected: nothing to persist; Resolution.Code says why.
	ActionRejected LinkAction = iota
	// ActionMatched: the user already carries this identity.
	ActionMatched
	// ActionCreated: Resolution.User is a new, unsaved social user.
	ActionCreated
	// ActionExpanded: Resolution.User is an existing local user that now
	// carries the identity and must be updated.
	ActionExpanded
)

func (a LinkAction) String() string {
	switch a {
	case ActionMatched:
		return "matched"
	case ActionCreated:
		return "created"
	case ActionExpanded:
		return "expanded"
	default:
		return "rejected"
	}
}

// Resolution is the outcome of ResolveOauthLink.
//
// On rejection User is the conflicting account when one exists for the
// email (useful for audit and UI) and nil for EmailUnknown.
type Resolution struct {
	User   *model.User
	Action LinkAction
	Code   apperror.Code
}

// ResolveOauthLink decides what a verified identity means for the account
// registered under the same email (existing, nil when there is none).
//
// Rules, first match wins:
//
//	no account, allowCreate         → create a social user
//	no account                      → EmailUnknown
//	account already has identity    → match
//	allowExpand, account has no id  → link identity to account
//	otherwise                       → OauthIDUnknown
//
// A resolved account that is inactive is rejected with UserInactive.
//
// The function has no side effects; existing is never modified (an
// expansion returns a copy).
func ResolveOauthLink(existing *model.User, id oauth.Identity, allowCreate, allowExpand bool, now time.Time) Resolution {
	if existing == nil {
		if !allowCreate {
			return Resolution{Action: ActionRejected, Code: apperror.EmailUnknown}
		}
		return Resolution{
			User:   model.NewSocialUser(id.Email, id.Provider, id.ProviderUserID, now),
			Action: ActionCreated,
		}
	}

	var r Resolution
	switch {
	case existing.MatchesOAuth(id.Provider, id.ProviderUserID):
		r = Resolution{User: existing, Action: ActionMatched}
	case allowExpand && !existing.HasOAuth():
		linked := *existing
		linked.LinkOAuth(id.Provider, id.ProviderUserID)
		r = Resolution{User: &linked, Action: ActionExpanded}
	default:
		return Resolution{User: existing, Action: ActionRejected, Code: apperror.OauthIDUnknown}
	}

	if !r.User.Active {
		return Resolution{User: existing, Action: ActionRejected, Code: apperror.UserInactive}
	}
	return r
}
