// Package mal is the MyAnimeList OAuth2 client used to complete
// registrations. It implements authflow.TokenExchanger on top of
// golang.org/x/oauth2.
//
// MyAnimeList only accepts the "plain" PKCE method, so the code challenge
// sent to the authorize endpoint is the verifier itself.
package mal
