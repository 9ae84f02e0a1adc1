package config

import (
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type options struct {
	paths    []string
	onChange func()
}

type Option func(*options)

// WithPaths 追加配置搜索路径（默认 ./config 和 .）
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = append(o.paths, paths...) }
}

// OnChange 热更新成功后的回调
func OnChange(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

// Load 只读取一次，不监听
func Load(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	v := newViper(service, o)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}
	log.Printf("[%s] config loaded from %s", service, v.ConfigFileUsed())
	return v, nil
}

func LoadAndWatch(service string, out interface{}, opts ...Option) (*viper.Viper, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	v, err := Load(service, out, opts...)
	if err != nil {
		return nil, err
	}

	// 监听文件变更，热更新到 out
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("[%s] config file changed: %s", service, e.Name)

		if err := v.Unmarshal(out); err != nil {
			log.Printf("[%s] reload config error: %v", service, err)
			return
		}
		log.Printf("[%s] config reloaded OK", service)
		if o.onChange != nil {
			o.onChange()
		}
	})

	return v, nil
}

func newViper(service string, o *options) *viper.Viper {
	v := viper.New()
	// 约定：config/{service}.yaml
	v.SetConfigName(service)
	v.SetConfigType("yaml")
	for _, p := range o.paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 环境变量覆盖，例如：
	//   LEDGER_SERVICE_HTTP_ADDR 覆盖 http.addr
	//   LEDGER_SERVICE_DB_SOURCE_NAME 覆盖 db.source_name
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(service, "-", "_")))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}
