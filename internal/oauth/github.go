package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubName is the provider key used for GitHub accounts.
const GitHubName = "github"

const defaultGitHubAPI = "https://api.github.com"

// githubUser is the portion of the GitHub /user API response we care about.
// GitHub returns a much larger object; we only unmarshal the fields we need.
type githubUser struct {
	ID    int64  `json:"id"` // numeric, stable, never changes
	Login string `json:"login"`
}

// githubEmail is one entry of the /user/emails response.
type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubVerifier verifies GitHub authorization codes.
//
// OAUTH 2.0 AUTHORIZATION CODE FLOW:
//  1. The server redirects the user to GitHub's authorization endpoint (AuthURL).
//  2. The user approves the request on GitHub.
//  3. GitHub redirects back to the callback URL with a short-lived "code".
//  4. Verify exchanges the code for an access token (server-to-server call).
//  5. Verify uses the access token to read the user id and verified email.
//
// The assertion passed to Verify is the code from step 3.
type GitHubVerifier struct {
	config  *oauth2.Config
	apiBase string
	client  *http.Client // nil means http.DefaultClient
}

// GitHubOption customises a GitHubVerifier.
type GitHubOption func(*GitHubVerifier)

// WithGitHubEndpoints points the verifier at a different token endpoint and
// API base URL (GitHub Enterprise, or a test server).
func WithGitHubEndpoints(endpoint oauth2.Endpoint, apiBase string) GitHubOption {
	return func(v *GitHubVerifier) {
		v.config.Endpoint = endpoint
		v.apiBase = strings.TrimRight(apiBase, "/")
	}
}

// WithGitHubHTTPClient sets the HTTP client used for every outbound call.
func WithGitHubHTTPClient(c *http.Client) GitHubOption {
	return func(v *GitHubVerifier) { v.client = c }
}

// NewGitHubVerifier creates a GitHubVerifier with the given OAuth app credentials.
//
// callbackURL must match the "Authorization callback URL" configured on the
// OAuth app exactly, e.g. "http://localhost:8080/auth/github/callback".
//
// Scopes requested:
//   - "read:user": the user's public profile (numeric ID)
//   - "user:email": the user's email addresses and their verification state
func NewGitHubVerifier(clientID, clientSecret, callbackURL string, opts ...GitHubOption) *GitHubVerifier {
	v := &GitHubVerifier{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: defaultGitHubAPI,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *GitHubVerifier) Name() string {
	return GitHubName
}

// AuthURL returns the URL to redirect the user to for authorization.
//
// STATE PARAMETER:
// The state is a random string stored in a cookie before redirecting. When
// GitHub calls back, the handler checks that the returned state matches the
// cookie, which stops CSRF attacks that complete an OAuth flow for someone
// else's account.
func (v *GitHubVerifier) AuthURL(state string) string {
	return v.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Verify exchanges code for an access token and returns the GitHub identity.
// The email is the account's primary address, and it must be verified.
func (v *GitHubVerifier) Verify(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, rejected(GitHubName, "empty authorization code", nil)
	}
	if v.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, v.client)
	}

	// This makes a POST to GitHub's token endpoint using the client secret.
	token, err := v.config.Exchange(ctx, code)
	if err != nil {
		return Identity{}, rejected(GitHubName, "exchanging code", err)
	}

	// The returned client adds "Authorization: Bearer <token>" to every request.
	client := v.config.Client(ctx, token)

	var user githubUser
	if err := v.getJSON(ctx, client, "/user", &user); err != nil {
		return Identity{}, err
	}
	if user.ID == 0 {
		return Identity{}, rejected(GitHubName, "invalid user (ID = 0)", nil)
	}

	var emails []githubEmail
	if err := v.getJSON(ctx, client, "/user/emails", &emails); err != nil {
		return Identity{}, err
	}
	email := primaryVerifiedEmail(emails)
	if email == "" {
		return Identity{}, rejected(GitHubName, "no verified primary email", nil)
	}

	return Identity{
		Provider:       GitHubName,
		ProviderUserID: strconv.FormatInt(user.ID, 10),
		Email:          email,
	}, nil
}

func (v *GitHubVerifier) getJSON(ctx context.Context, client *http.Client, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("oauth: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return rejected(GitHubName, "calling "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rejected(GitHubName, fmt.Sprintf("%s returned status %d", path, resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return rejected(GitHubName, "decoding "+path, err)
	}
	return nil
}

func primaryVerifiedEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}
