// Package repository provides Bun backed storage: a generic repository with
// composable query modifiers and pagination, and the exclusion record store.
package repository
