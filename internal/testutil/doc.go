// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when scripting provider responses, constructing
// sessions and observing tool executions. They are not intended for
// production usage.
package testutil
