// Package auth signs users in against an OAuth2 identity provider and keeps
// their tokens fresh.
//
// A Service is constructed explicitly, initialized once with Init and released
// with Close. Every method called before Init (or after Close) returns
// ErrNotInitialized. Interactive sign-in uses the authorization code flow with
// PKCE (S256); afterwards Token refreshes access tokens silently and reports
// ErrInteractionRequired when the refresh token is no longer accepted.
//
// Tokens are persisted through a TokenStore. FileStore keeps one JSON file per
// account under the user cache directory, BoltStore keeps them in a single
// bbolt database and MemoryStore holds them for the lifetime of the process.
//
// Supported providers are Google and Microsoft (Azure AD). The account
// identity is read from the id_token returned with the token; when the
// provider did not send one, the OIDC userinfo endpoint is queried.
package auth
