package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashup.com/pkg/config"
)

func TestCfg_LoadRepoConfig(t *testing.T) {
	var cfg Cfg
	_, err := config.Load(ServiceName, &cfg, config.WithPaths("../../config"))
	require.NoError(t, err)

	assert.Equal(t, ServiceName, cfg.Name)
	assert.Equal(t, "0.20", cfg.Ledger.ProfitPct().StringFixed(2))
	assert.Equal(t, "0.05", cfg.Ledger.ReferralPct().StringFixed(2))
	assert.Equal(t, 24*time.Hour, cfg.Ledger.DailyWindow)
	assert.Equal(t, 10*time.Minute, cfg.Ledger.CacheTTL)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, cfg.Ledger.Weekdays())
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
}

func TestRules_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		rules    Rules
		wantPct  string
		wantRest []time.Weekday
		wantLoc  string
	}{
		{"全部留空", Rules{}, "0.20", []time.Weekday{time.Friday, time.Saturday}, "UTC"},
		{"自定义休息日", Rules{RestDays: []string{" sunday ", "Monday", "holiday"}}, "0.20", []time.Weekday{time.Sunday, time.Monday}, "UTC"},
		{"非法百分比回退默认", Rules{ProfitPercentage: "abc"}, "0.20", []time.Weekday{time.Friday, time.Saturday}, "UTC"},
		{"非法时区回退 UTC", Rules{ProfitPercentage: "0.5", Timezone: "Mars/Base"}, "0.50", []time.Weekday{time.Friday, time.Saturday}, "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantPct, tt.rules.ProfitPct().StringFixed(2))
			assert.Equal(t, tt.wantRest, tt.rules.Weekdays())
			assert.Equal(t, tt.wantLoc, tt.rules.Location().String())
		})
	}
}
