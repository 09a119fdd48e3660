package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageParams 分页参数
type PageParams struct {
	Page     int `json:"page" form:"page"`
	PageSize int `json:"page_size" form:"page_size"`
}

// PageInfo 分页信息
type PageInfo struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// 分页配置
const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// New 构造并规范化分页参数
func New(page, pageSize int) PageParams {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return PageParams{Page: page, PageSize: pageSize}
}

// All 不分页时使用，取上限条数
func All() PageParams {
	return PageParams{Page: 1, PageSize: 1000}
}

// ParsePageParams 从请求中解析分页参数
func ParsePageParams(c *gin.Context) PageParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	return New(page, pageSize)
}

// NewPageInfo 计算分页信息
func NewPageInfo(params PageParams, total int64) *PageInfo {
	totalPages := int(math.Ceil(float64(total) / float64(params.PageSize)))

	return &PageInfo{
		Page:       params.Page,
		PageSize:   params.PageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    params.Page < totalPages,
		HasPrev:    params.Page > 1,
	}
}

// Offset 计算offset
func (p PageParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Limit 计算limit
func (p PageParams) Limit() int {
	return p.PageSize
}
