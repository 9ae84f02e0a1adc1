package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_MissingOptions(t *testing.T) {
	err := Run(context.Background(), Options{ConfigName: "ledger-service"})
	assert.Error(t, err)
}

func TestInitSentinelFromCfg_DisabledIsNoop(t *testing.T) {
	hook := InitSentinelFromCfg(func(interface{}) *SentinelCfg {
		return &SentinelCfg{}
	})
	assert.NoError(t, hook(nil))

	hook = InitSentinelFromCfg(func(interface{}) *SentinelCfg { return nil })
	assert.NoError(t, hook(nil))
}
