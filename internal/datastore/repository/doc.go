// Package repository provides the repository interfaces and GORM
// implementations for the fieldwatch store.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrDeviceNotFound, ErrAlertNotFound,
// ...) instead of leaking GORM errors. Transient store failures are wrapped
// with ErrStoreUnavailable and carry the database or timeout error category,
// which marks them retryable. A lost race on an alert transition is reported
// as ErrConcurrencyConflict.
//
// # Timestamps
//
// All timestamps are normalized to UTC with millisecond precision before they
// are written or used in a query, so ordering is identical on SQLite and MySQL.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use. Callers that need a
// consistent view across several calls use AlertRepository.ApplyTransition,
// which runs its checks and writes in one transaction.
package repository
