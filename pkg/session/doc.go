// Package session turns incoming bearer tokens into portal users.
//
// The portal sits behind AWS Cognito: the hosted UI issues ID tokens whose
// group memberships ("cognito:groups") are the portal's role names. By
// default the Manager extracts claims without signature verification, which
// is correct when an authenticating gateway in front of the portal has
// already verified the token. Deployments that expose the portal directly
// enable OIDC verification instead, which fetches the issuer's JWKS and
// checks signatures and audience.
//
// Parsed users are cached in a bounded expirable LRU keyed by token hash,
// so busy clients do not pay the parse cost on every request.
package session
