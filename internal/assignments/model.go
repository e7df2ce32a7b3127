package assignments

import (
	"time"

	"github.com/google/uuid"
)

// PendingAdvance records an order whose agent was assigned but whose status
// never advanced to assigned. It stays open until a retry succeeds.
type PendingAdvance struct {
	ID          uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID     string     `gorm:"column:order_id;not null" json:"orderId"`
	OrderNumber string     `gorm:"column:order_number;not null;default:''" json:"orderNumber"`
	AgentID     string     `gorm:"column:agent_id;not null" json:"agentId"`
	AgentName   string     `gorm:"column:agent_name;not null;default:''" json:"agentName"`
	LastError   string     `gorm:"column:last_error;not null;default:''" json:"lastError"`
	Attempts    int        `gorm:"column:attempts;not null;default:1" json:"attempts"`
	CreatedAt   time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at" json:"updatedAt"`
	ResolvedAt  *time.Time `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
}

func (PendingAdvance) TableName() string {
	return "pending_advances"
}

func (p PendingAdvance) IsOpen() bool {
	return p.ResolvedAt == nil
}

// Entry is the input for recording a failed advance.
type Entry struct {
	OrderID     string
	OrderNumber string
	AgentID     string
	AgentName   string
	Err         error
}
