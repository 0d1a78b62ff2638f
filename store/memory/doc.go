// Package memory provides volatile, process local configuration stores. They
// are safe for concurrent access and suited for tests, demos and single
// instance deployments without persistence.
package memory
