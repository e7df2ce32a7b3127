package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/gasflow/ops-console/pkg/enums"
	pkgerrors "github.com/gasflow/ops-console/pkg/errors"
)

// DateLayout is the wire format of list date filters.
const DateLayout = "2006-01-02"

// Filter is the active list filter. Zero dates mean unbounded.
type Filter struct {
	Tab       enums.StatusTab
	Search    string
	StartDate time.Time
	EndDate   time.Time
}

// NewFilter parses raw query values into a Filter.
func NewFilter(tab, search, startDate, endDate string) (Filter, error) {
	parsedTab, err := enums.ParseStatusTab(strings.TrimSpace(tab))
	if err != nil {
		return Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status tab")
	}
	f := Filter{Tab: parsedTab, Search: strings.TrimSpace(search)}
	if f.StartDate, err = parseDate(startDate); err != nil {
		return Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid startDate")
	}
	if f.EndDate, err = parseDate(endDate); err != nil {
		return Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid endDate")
	}
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.EndDate.Before(f.StartDate) {
		return Filter{}, pkgerrors.New(pkgerrors.CodeValidation, "endDate precedes startDate")
	}
	return f, nil
}

// WithTab returns a copy of the filter pinned to another tab.
func (f Filter) WithTab(tab enums.StatusTab) Filter {
	f.Tab = tab
	return f
}

// EffectiveTab treats an empty tab as "all".
func (f Filter) EffectiveTab() enums.StatusTab {
	if f.Tab == "" {
		return enums.StatusTabAll
	}
	return f.Tab
}

// Admits reports whether the filter would include the order. Search is matched
// the way the backend does: customer, agent and order number.
func (f Filter) Admits(o Order) bool {
	if !f.EffectiveTab().Admits(o.Status) {
		return false
	}
	if !f.StartDate.IsZero() || !f.EndDate.IsZero() {
		if o.CreatedAt.IsZero() {
			return false
		}
		day := o.CreatedAt.Format(DateLayout)
		if !f.StartDate.IsZero() && day < f.StartDate.Format(DateLayout) {
			return false
		}
		if !f.EndDate.IsZero() && day > f.EndDate.Format(DateLayout) {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		candidates := []string{o.ID, o.OrderNumber, o.CustomerName, o.CustomerEmail, o.CustomerPhone}
		if o.AssignedAgent != nil {
			candidates = append(candidates, o.AssignedAgent.Name, o.AssignedAgent.Phone)
		}
		for _, c := range candidates {
			if c != "" && strings.Contains(strings.ToLower(c), needle) {
				return true
			}
		}
		return false
	}
	return true
}

// FormatDate renders a filter date for the wire, empty when unset.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// String is used as a log field.
func (f Filter) String() string {
	return fmt.Sprintf("tab=%s search=%q start=%s end=%s", f.EffectiveTab(), f.Search, FormatDate(f.StartDate), FormatDate(f.EndDate))
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(DateLayout, raw)
}
