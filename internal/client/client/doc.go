// Package client talks to the EduMarket REST backend and owns the
// authenticated request pipeline.
//
// # Overview
//
//  1. Client is the API contract used by the session layer: Login, Register,
//     Refresh, CartCount, Profile and EnsureFresh.
//  2. HTTPClient implements it over net/http. Requests that need a bearer
//     token go through authTransport, which checks the access token before
//     each request and refreshes it when it has expired. Concurrent requests
//     that find the token expired share one refresh call (syncx.Coordinator).
//  3. InitDatabase and RunMigrations open the local SQLite file and apply the
//     embedded goose migrations.
//
// # Refresh outcomes
//
// A refresh rejected with 401/403 clears the stored tokens and calls
// SessionHooks.SessionExpired once; every waiting request fails with
// ErrUnauthorized. A refresh that cannot reach the backend fails the waiting
// requests with ErrUnavailable and leaves the session alone.
//
// # Error Handling
//
// Callers match ErrUnauthorized, ErrUnavailable and common.ErrNotFound with
// errors.Is. Other rejections are *APIError values carrying the backend's
// detail message and field errors.
package client
