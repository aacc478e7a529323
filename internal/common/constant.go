// Package common contains shared constants and sentinel errors used across
// EduMarket client components.
package common

// AuthorizationHeaderName is the HTTP header used to carry the access token
// on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the access token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName correlates client log lines with backend requests.
const RequestIDHeaderName = "X-Request-ID"

// LoginRoute is where an expired session is sent.
const LoginRoute = "/login/"

// HomeRoute is where an authenticated user leaving the login page lands.
const HomeRoute = "/"

// PublicRoutes are reachable without a session.
var PublicRoutes = []string{LoginRoute, "/register/", "/forgot-password/", "/create-new-password/"}
