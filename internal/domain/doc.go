// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (wire/state) and contracts (interfaces) only.
//
// The types live in internal/domain/types and the contracts in
// internal/domain/interfaces; this package re-exports both as aliases so
// services can import a single package.
package domain
