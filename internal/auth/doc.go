// Package auth provides operator authentication and authorisation.
//
// Three roles (viewer → operator → admin) map statically to permissions.
// Passwords are hashed with Argon2id and sessions are stateless HS256 JWT
// access tokens validated by signature only. On first boot SeedAdmin
// creates an admin account with a random password.
package auth
