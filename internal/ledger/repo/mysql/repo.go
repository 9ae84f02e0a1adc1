package mysql

import (
	"context"
	"errors"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cashup.com/internal/ledger/domain"
	"cashup.com/pkg/xerr"
)

type txKey struct{}

var forUpdate = clause.Locking{Strength: "UPDATE"}

type Repo struct {
	db *gorm.DB
}

var _ domain.Repository = (*Repo)(nil)

func New(db *gorm.DB) *Repo { return &Repo{db: db} }

// Models 参与迁移的全部表
func Models() []interface{} {
	return []interface{}{
		&domain.Account{},
		&domain.CashupDeposit{},
		&domain.CashupOwingDeposit{},
		&domain.CashUpDaily{},
		&domain.CashupMonthly{},
		&domain.CashupDepositMonthlyCompounding{},
		&domain.TransferHistory{},
		&domain.CashupDepositHistory{},
		&domain.CashupProfitHistory{},
		&domain.CashupOwingProfitHistory{},
		&domain.BucketHistory{},
		&domain.WithdrawalRequest{},
		&domain.ReferralCode{},
		&domain.Transaction{},
		&domain.BuyerTransaction{},
		&domain.Purchase{},
		&domain.MobileRecharge{},
		&domain.IdempotencyRecord{},
	}
}

func (r *Repo) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (r *Repo) Transaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	// 嵌套调用直接复用外层事务
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey{}, tx)
		return fn(txCtx)
	})
	if _, ok := xerr.As(err); !ok && lockConflict(err) {
		return xerr.Wrap(err, xerr.ConcurrentUpdate, "commit")
	}
	return err
}

func (r *Repo) getDb(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// dbErr 业务错误原样返回，其它包成 DbError
func dbErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if _, ok := xerr.As(err); ok {
		return err
	}
	if lockConflict(err) {
		return xerr.Wrap(err, xerr.ConcurrentUpdate, msg)
	}
	return xerr.Wrap(err, xerr.DbError, msg)
}

// lockConflict 死锁或锁等待超时，事务已回滚，可以整体重试
func lockConflict(err error) bool {
	var me *gomysql.MySQLError
	return errors.As(err, &me) && (me.Number == 1213 || me.Number == 1205)
}

func notFound(err error, as error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return as
	}
	return dbErr(err, msg)
}
