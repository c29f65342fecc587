package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional transaction.
// A nil Tx means "use the repository's default handle".
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

func (c Context) Context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// DB resolves the handle a repository should use for this call.
func (c Context) DB(def *gorm.DB) *gorm.DB {
	tx := c.Tx
	if tx == nil {
		tx = def
	}
	return tx.WithContext(c.Context())
}
