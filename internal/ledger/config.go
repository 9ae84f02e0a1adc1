package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cashup.com/pkg/bootstrap"
	"cashup.com/pkg/orm"
	"cashup.com/pkg/ratelimit"
	"cashup.com/pkg/xredis"
)

const ServiceName = "ledger-service"

type Cfg struct {
	Name     string                `yaml:"name" mapstructure:"name"`
	LogLevel string                `yaml:"log_level" mapstructure:"log_level"`
	HTTP     HTTP                  `yaml:"http" mapstructure:"http"`
	Db       orm.Config            `yaml:"db" mapstructure:"db"`
	Redis    xredis.Config         `yaml:"redis" mapstructure:"redis"`
	OTel     OTel                  `yaml:"otel" mapstructure:"otel"`
	Etcd     bootstrap.EtcdCfg     `yaml:"etcd" mapstructure:"etcd"`
	Sentinel bootstrap.SentinelCfg `yaml:"sentinel" mapstructure:"sentinel"`
	Nats     Nats                  `yaml:"nats" mapstructure:"nats"`
	Breaker  ratelimit.Rule        `yaml:"breaker" mapstructure:"breaker"`
	Ledger   Rules                 `yaml:"ledger" mapstructure:"ledger"`

	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr"`
	PprofAddr   string `yaml:"pprof_addr" mapstructure:"pprof_addr"`
}

type HTTP struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
	// 每个 ip+route 每秒请求数，<=0 关闭限流
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
	// 每个 websocket 连接的待发事件上限
	StreamBuffer int `yaml:"stream_buffer" mapstructure:"stream_buffer"`
}

type OTel struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

type Nats struct {
	URL           string `yaml:"url" mapstructure:"url"`
	SubjectPrefix string `yaml:"subject_prefix" mapstructure:"subject_prefix"`
}

// Rules 账本规则，金额类用字符串配置避免浮点误差
type Rules struct {
	ProfitPercentage string        `yaml:"profit_percentage" mapstructure:"profit_percentage"`
	ReferralRate     string        `yaml:"referral_rate" mapstructure:"referral_rate"`
	RestDays         []string      `yaml:"rest_days" mapstructure:"rest_days"`
	Timezone         string        `yaml:"timezone" mapstructure:"timezone"`
	DailyWindow      time.Duration `yaml:"daily_window" mapstructure:"daily_window"`
	MaturityWindow   time.Duration `yaml:"maturity_window" mapstructure:"maturity_window"`
	ResetWindow      time.Duration `yaml:"reset_window" mapstructure:"reset_window"`
	CacheTTL         time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	ApprovalLockTTL  time.Duration `yaml:"approval_lock_ttl" mapstructure:"approval_lock_ttl"`
}

func (r Rules) ProfitPct() decimal.Decimal {
	return parseDecimal(r.ProfitPercentage, "0.20")
}

func (r Rules) ReferralPct() decimal.Decimal {
	return parseDecimal(r.ReferralRate, "0.05")
}

// Weekdays 解析休息日，未配置时默认周五周六
func (r Rules) Weekdays() []time.Weekday {
	if len(r.RestDays) == 0 {
		return []time.Weekday{time.Friday, time.Saturday}
	}
	out := make([]time.Weekday, 0, len(r.RestDays))
	for _, d := range r.RestDays {
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			if strings.EqualFold(strings.TrimSpace(d), wd.String()) {
				out = append(out, wd)
				break
			}
		}
	}
	return out
}

func (r Rules) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseDecimal(s, def string) decimal.Decimal {
	if s == "" {
		s = def
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.RequireFromString(def)
	}
	return d
}
