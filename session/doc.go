// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in the core package so
// agents depend only on the contract. Durable backends belong to the hosting
// application; only the wiring layer decides which implementation to use.
package session
