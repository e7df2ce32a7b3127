package assignments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gasflow/ops-console/internal/repo"
	"github.com/gasflow/ops-console/pkg/db"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
	"github.com/gasflow/ops-console/pkg/pagination"
)

// Repository persists assign saga compensation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Record(ctx context.Context, e Entry) (*PendingAdvance, error)
	FindOpenByOrder(ctx context.Context, orderID string) (*PendingAdvance, error)
	ListOpen(ctx context.Context, limit int) ([]PendingAdvance, error)
	Resolve(ctx context.Context, orderID string) (bool, error)
}

type repositoryImpl struct {
	base repo.Base
	now  func() time.Time
}

func NewRepository(conn *gorm.DB) Repository {
	return &repositoryImpl{base: repo.NewBase(conn), now: time.Now}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{base: r.base.WithTx(tx), now: r.now}
}

// Record opens a compensation entry for the order, or bumps the attempt count
// of the one already open.
func (r *repositoryImpl) Record(ctx context.Context, e Entry) (*PendingAdvance, error) {
	if strings.TrimSpace(e.OrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if strings.TrimSpace(e.AgentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id is required")
	}

	var out *PendingAdvance
	err := r.base.Transaction(ctx, func(tx repo.Base) error {
		existing, err := findOpen(tx.DB(ctx), e.OrderID)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		if existing != nil {
			updates := map[string]any{
				"agent_id":   e.AgentID,
				"agent_name": e.AgentName,
				"last_error": errorText(e.Err),
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": now,
			}
			if err := tx.DB(ctx).Model(&PendingAdvance{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			out, err = findOpen(tx.DB(ctx), e.OrderID)
			return err
		}

		row := &PendingAdvance{
			ID:          uuid.New(),
			OrderID:     e.OrderID,
			OrderNumber: e.OrderNumber,
			AgentID:     e.AgentID,
			AgentName:   e.AgentName,
			LastError:   errorText(e.Err),
			Attempts:    1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.DB(ctx).Create(row).Error; err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "compensation already recorded for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record pending advance")
	}
	return out, nil
}

func (r *repositoryImpl) FindOpenByOrder(ctx context.Context, orderID string) (*PendingAdvance, error) {
	row, err := findOpen(r.base.DB(ctx), orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find pending advance")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no pending advance for order")
	}
	return row, nil
}

func (r *repositoryImpl) ListOpen(ctx context.Context, limit int) ([]PendingAdvance, error) {
	var rows []PendingAdvance
	err := r.base.DB(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list pending advances")
	}
	return rows, nil
}

// Resolve closes the open entry for the order. It reports whether one existed.
func (r *repositoryImpl) Resolve(ctx context.Context, orderID string) (bool, error) {
	now := r.now().UTC()
	result := r.base.DB(ctx).
		Model(&PendingAdvance{}).
		Where("order_id = ? AND resolved_at IS NULL", orderID).
		Updates(map[string]any{"resolved_at": now, "updated_at": now})
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "resolve pending advance")
	}
	return result.RowsAffected > 0, nil
}

func findOpen(conn *gorm.DB, orderID string) (*PendingAdvance, error) {
	var row PendingAdvance
	err := conn.Where("order_id = ? AND resolved_at IS NULL", orderID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		return typed.Message()
	}
	return err.Error()
}
