package pkg

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage 页码上限，保证 (page-1)*limit 不溢出
	MaxPage         = 1_000_000
)

// PageMeta 列表响应的分页信息
type PageMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

// Page 分页结果
type Page[T any] struct {
	Data []T `json:"data"`
	PageMeta
}

// NormalizePage 页码从 1 开始，超过 MaxPage 按 MaxPage 算；limit 非法时取默认值
func NormalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = DefaultPageSize
	}
	return page, limit
}

// Offset 页码换算为偏移量
func Offset(page, limit int) int {
	return (page - 1) * limit
}

// NewPage 组装分页结果，data 为空时返回空数组而不是 null
func NewPage[T any](data []T, page, limit int, total int64) *Page[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Page[T]{
		Data: data,
		PageMeta: PageMeta{
			Page:        page,
			Limit:       limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNextPage: page < totalPages,
			HasPrevPage: page > 1,
		},
	}
}
