// Package authflow orchestrates account registration against an OAuth2
// media-list provider: email verification, PKCE authorization-code
// exchange and token bookkeeping, all keyed by short-lived session keys.
//
// A session moves through verif, pending and done. It may be diverted to
// errored or canceled. Every state except done expires after
// Session.ExpiryTTL unless it advanced first.
//
//	key, _ := eng.StartRegister(ctx, email, password)   // verif, code mailed
//	url, _ := eng.VerifyCode(ctx, key, code, domain, "") // pending
//	// user authorizes upstream, provider calls back with ?code=&state=key
//	to, _ := eng.CompleteRegistration(ctx, key, code, domain) // done
//
// # Architecture boundaries
//
// authflow is the public surface: [Engine], [Builder], [Config], errors and
// the collaborator interfaces [UserRepository], [Mailer] and
// [TokenExchanger]. Sessions live in memory only; persistence, mail
// transport and the provider client are supplied by the caller
// (see provider/mal and mail for ready-made ones).
//
// # What this package must NOT do
//
//   - Hold the session store lock across a collaborator call.
//   - Cancel expiry timers; a timer that finds its session in another state
//     does nothing.
//   - Place verification codes, verifiers, passwords or tokens in logs,
//     audit events or debug listings.
package authflow
