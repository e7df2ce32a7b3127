package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows an interactive list can request.
	MaxLimit = 100
	// ExportLimit is the page size used when pulling a full export.
	ExportLimit = 10000
)

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Pagination mirrors the backend's page metadata.
type Pagination struct {
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
	TotalItems  int `json:"totalItems"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage clamps the page to the 1-based range.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Normalize returns params with page and limit clamped.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// HasNext reports whether another page follows the current one.
func (p Pagination) HasNext() bool {
	return p.CurrentPage < p.TotalPages
}

// HasPrev reports whether a page precedes the current one.
func (p Pagination) HasPrev() bool {
	return p.CurrentPage > 1
}

// TotalPagesFor computes the page count for a total and a page size.
func TotalPagesFor(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
