// Package middleware adapts HTTP requests to authflow.Engine calls.
//
// # Adapters
//
//   - [RequestState] reads and checks the "state" parameter of a request.
//   - [Guard] resolves a session key and requires one of the given states.
//   - [RequireSessionToken] resolves the key from a bearer session token only.
//   - [ClientIP] records the caller address for register throttling.
//   - [Status] maps engine errors onto HTTP status codes.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every state
// decision is delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or sign session tokens directly (delegates to Engine).
//   - Read or write the session store.
//   - Destroy or force sessions on the caller's behalf.
package middleware
