// Package auth holds the operator credential primitives for the control
// API: Argon2id password hashing in PHC string format.
//
// ShowSync has a single operator account; the hash lives in configuration
// and the API's login endpoint verifies against it.
package auth
