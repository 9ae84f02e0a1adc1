package domain

import (
	"time"
)

const ReferralCodeLen = 8

// ReferralCode 一次性推荐码，发过佣金后永久失效
type ReferralCode struct {
	ID                     int64
	Code                   string `gorm:"size:16;uniqueIndex;not null"`
	CreatorID              int64  `gorm:"uniqueIndex;not null"`
	IsValid                bool   `gorm:"not null"`
	IsUsed                 bool   `gorm:"not null;default:false"`
	AffiliateProfitAwarded bool   `gorm:"not null;default:false"`
	UsedBy                 *int64
	AwardedAt              *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (ReferralCode) TableName() string { return "referral_codes" }

// Redeemable 有效且还没发过佣金
func (r *ReferralCode) Redeemable() bool {
	return r.IsValid && !r.IsUsed && !r.AffiliateProfitAwarded
}
