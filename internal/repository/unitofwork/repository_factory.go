package unitofwork

import "context"

// RepositoryFactory hands out short-lived units of work, one per request or
// settlement. Services hold the factory, never a gorm handle.
type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
