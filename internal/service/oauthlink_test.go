package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/authcore/internal/apperror"
	"github.com/sakif/authcore/internal/model"
	"github.com/sakif/authcore/internal/oauth"
)

func TestResolveOauthLink(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	id := oauth.Identity{Provider: "google", ProviderUserID: "g-1", Email: "e@example.com"}

	local := func(active bool) *model.User {
		u := model.NewLocalUser("e@example.com", "$2a$04$hash", now)
		u.ID = 1
		u.Active = active
		return u
	}
	linkedTo := func(service, pid string) *model.User {
		u := local(true)
		u.LinkOAuth(service, pid)
		return u
	}

	tests := []struct {
		name        string
		existing    *model.User
		allowCreate bool
		allowExpand bool
		wantAction  LinkAction
		wantCode    apperror.Code
		wantUser    bool
	}{
		{"no user, create allowed", nil, true, false, ActionCreated, "", true},
		{"no user, create denied", nil, false, true, ActionRejected, apperror.EmailUnknown, false},
		{"exact match", linkedTo("google", "g-1"), false, false, ActionMatched, "", true},
		{"exact match ignores flags", linkedTo("google", "g-1"), true, true, ActionMatched, "", true},
		{"local user, expand allowed", local(true), false, true, ActionExpanded, "", true},
		{"local user, expand denied", local(true), true, false, ActionRejected, apperror.OauthIDUnknown, true},
		{"linked to other id", linkedTo("google", "g-2"), true, true, ActionRejected, apperror.OauthIDUnknown, true},
		{"linked to other provider", linkedTo("github", "g-1"), true, true, ActionRejected, apperror.OauthIDUnknown, true},
		{"inactive match", func() *model.User { u := linkedTo("google", "g-1"); u.Active = false; return u }(), false, false, ActionRejected, apperror.UserInactive, true},
		{"inactive expand", local(false), false, true, ActionRejected, apperror.UserInactive, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ResolveOauthLink(tt.existing, id, tt.allowCreate, tt.allowExpand, now)

			assert.Equal(t, tt.wantAction, r.Action, "action %s", r.Action)
			assert.Equal(t, tt.wantCode, r.Code)
			if !tt.wantUser {
				assert.Nil(t, r.User)
				return
			}
			if assert.NotNil(t, r.User) && tt.wantAction != ActionRejected {
				assert.True(t, r.User.MatchesOAuth("google", "g-1"))
			}
		})
	}
}

func TestResolveOauthLink_CreateBuildsSocialUser(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	id := oauth.Identity{Provider: "github", ProviderUserID: "42", Email: "New@Example.com"}

	r := ResolveOauthLink(nil, id, true, false, now)

	assert.Equal(t, ActionCreated, r.Action)
	assert.Equal(t, "new@example.com", r.User.Email)
	assert.Zero(t, r.User.ID)
	assert.True(t, r.User.Active)
	assert.False(t, r.User.HasPassword())
	assert.Equal(t, now, r.User.Created)
}

func TestResolveOauthLink_ExpandDoesNotMutateInput(t *testing.T) {
	u := model.NewLocalUser("e@example.com", "$2a$04$hash", time.Now())
	u.ID = 7
	id := oauth.Identity{Provider: "google", ProviderUserID: "g-1", Email: "e@example.com"}

	r := ResolveOauthLink(u, id, false, true, time.Now())

	assert.Equal(t, ActionExpanded, r.Action)
	assert.False(t, u.HasOAuth(), "input user must be left untouched")
	assert.Equal(t, int64(7), r.User.ID)
	assert.True(t, r.User.HasPassword(), "expansion keeps the password")
}

func TestResolveOauthLink_ConflictReturnsExistingUser(t *testing.T) {
	u := model.NewLocalUser("e@example.com", "$2a$04$hash", time.Now())
	id := oauth.Identity{Provider: "google", ProviderUserID: "g-1", Email: "e@example.com"}

	r := ResolveOauthLink(u, id, true, false, time.Now())

	assert.Equal(t, apperror.OauthIDUnknown, r.Code)
	assert.Same(t, u, r.User)
}

func TestLinkAction_String(t *testing.T) {
	assert.Equal(t, "rejected", ActionRejected.String())
	assert.Equal(t, "matched", ActionMatched.String())
	assert.Equal(t, "created", ActionCreated.String())
	assert.Equal(t, "expanded", ActionExpanded.String())
}
