package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/segmentio/encoding/json"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

type idemKey struct{}

type idemReq struct {
	key  string
	body [sha256.Size]byte
}

// WithIdempotency 给本次请求挂上幂等键，body 用于判断同键不同参数
func WithIdempotency(ctx context.Context, key string, body []byte) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, idemKey{}, idemReq{key: key, body: sha256.Sum256(body)})
}

func idemScope(m opMeta) string { return fmt.Sprintf("%s:%d", m.op, m.actor) }

// requestHash 操作对象也算参数：管理员接口的目标 id 在路径上，body 为空
func requestHash(m opMeta, req idemReq) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:%d:", m.account, m.target)
	h.Write(req.body[:])
	return hex.EncodeToString(h.Sum(nil))
}

// claimIdempotency 在业务事务里抢占幂等键。
// 已存在时：参数一致返回上次的结果，不一致报 IdempotencyConflict
func (s *Service) claimIdempotency(ctx context.Context, m opMeta) (*domain.IdempotencyRecord, *domain.Result, error) {
	req, ok := ctx.Value(idemKey{}).(idemReq)
	if !ok {
		return nil, nil, nil
	}
	hash := requestHash(m, req)
	rec := &domain.IdempotencyRecord{Scope: idemScope(m), Key: req.key, RequestHash: hash}
	won, err := s.repo.ClaimIdempotency(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	if won {
		return rec, nil, nil
	}

	old, err := s.repo.LockIdempotency(ctx, rec.Scope, req.key)
	if err != nil {
		return nil, nil, err
	}
	if old.RequestHash != hash {
		return nil, nil, domain.ErrIdempotencyConflict
	}
	if len(old.Response) == 0 {
		return nil, nil, xerr.New(xerr.ConcurrentUpdate, "request in progress, retry later")
	}
	var res domain.Result
	if err := json.Unmarshal(old.Response, &res); err != nil {
		return nil, nil, xerr.Wrap(err, xerr.ServerCommonError, "decode idempotent response")
	}
	return nil, &res, nil
}

func (s *Service) storeIdempotency(ctx context.Context, rec *domain.IdempotencyRecord, res *domain.Result) error {
	if rec == nil {
		return nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.repo.SaveIdempotencyResponse(ctx, rec.ID, b)
}
