// Package catalog is a small product catalog: the record types, their
// validation rules and two Store implementations (in-memory and SQLite).
//
// The HTTP surface lives in catalog/httpapi and a typed client in
// catalog/client. Agents and tool servers integrate with the catalog only
// through that client.
package catalog
