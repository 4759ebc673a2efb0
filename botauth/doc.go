// Package botauth gates bot accounts behind temporary keys.
//
// When key auth is enabled, a freshly connected bot is not trusted until
// its operator runs the auth command with a key minted by GenerateKey.
// Keys are short-lived (3 minutes), single use, and bound to one bot
// account. Repeated bad keys ban the account for a configurable window.
//
// Authenticated state and ban bookkeeping live in the auth store; without
// a database the manager degrades to process memory, so state is lost on
// restart but the policy still holds.
//
// The key material helpers (GenerateAPIKey, GenerateSecureToken) serve
// the admin surface and are independent of the temp-key flow.
package botauth
