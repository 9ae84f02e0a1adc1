package register

import "context"

// 注册中心里的一条服务实例
type Instance struct {
	ID       string            `json:"id"`   // ip:port
	Name     string            `json:"name"` // eg:"ledger-service"
	Addr     string            `json:"addr"`
	MetaData map[string]string `json:"metadata"`
}

type Register interface {
	Register(ctx context.Context, ins *Instance) error
	UnRegister(ctx context.Context, ins *Instance) error
}
