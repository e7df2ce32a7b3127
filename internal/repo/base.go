package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is embedded by the console's gorm repositories.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx, or the raw connection when ctx is nil.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to tx. A nil tx keeps the current connection.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx}
}

// Transaction runs fn inside a transaction on the bound connection.
func (b Base) Transaction(ctx context.Context, fn func(tx Base) error) error {
	return b.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(Base{db: tx})
	})
}
