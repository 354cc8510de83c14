// Package testutil contains helper builders and fixtures used across tests to
// reduce boilerplate when constructing conversational content, sessions and a
// running catalog API. They are not intended for production usage.
package testutil
