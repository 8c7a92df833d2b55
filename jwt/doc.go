// Package jwt issues and verifies session tokens: short signed wrappers around
// a registration session key, handed to clients that prefer a bearer token
// over carrying the raw key.
package jwt
