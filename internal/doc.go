// Package internal contains helpers that are private to authflow: random
// session keys, PKCE verifiers and verification codes.
//
// # Sub-packages
//
//   - rate: register throttles (Redis fixed window and in-process token bucket)
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Be imported by any package outside the authflow module.
package internal
