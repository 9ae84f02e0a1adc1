package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/common"
	"cashup.com/pkg/orm"
	"cashup.com/pkg/xerr"
)

type pageResp[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// List 当前账户的分页列表，?page=&limit=
func List[T any](fn func(ctx context.Context, accountID int64, p orm.Page) ([]T, int64, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := caller(c)
		if !ok {
			return
		}
		var p orm.Page
		if err := c.ShouldBindQuery(&p); err != nil {
			common.FailFromErr(c, xerr.Wrap(err, xerr.RequestParamsError, "bind page"))
			return
		}
		p = p.Normalize()
		items, total, err := fn(c.Request.Context(), id, p)
		if err != nil {
			common.FailFromErr(c, err)
			return
		}
		common.Success(c, pageResp[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit})
	}
}

// Purchases ?confirmed=true 看已结算，默认看购物车
func (h *Ledger) Purchases(c *gin.Context) {
	confirmed, _ := strconv.ParseBool(c.Query("confirmed"))
	List(func(ctx context.Context, accountID int64, p orm.Page) ([]domain.Purchase, int64, error) {
		return h.svc.Query().ListPurchases(ctx, accountID, confirmed, p)
	})(c)
}

func (h *Ledger) Query() domain.Queries { return h.svc.Query() }
