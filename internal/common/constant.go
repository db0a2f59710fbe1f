package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "authorization"

// BearerPrefix precedes the token in the authorization header value.
const BearerPrefix = "Bearer "

// RefreshSecretSize is the number of random bytes behind every refresh secret.
const RefreshSecretSize = 64

// DefaultRole is assigned to self-registered users.
const DefaultRole = "user"
