package pagination

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Query 分页参数，绑定阶段即校验 page >= 1、1 <= size <= 100
type Query struct {
	Page int `form:"page,default=1" json:"page" binding:"min=1"`
	Size int `form:"size,default=20" json:"size" binding:"min=1,max=100"`
}

func (q Query) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit()
}

func (q Query) Limit() int {
	switch {
	case q.Size < 1:
		return DefaultSize
	case q.Size > MaxSize:
		return MaxSize
	default:
		return q.Size
	}
}
