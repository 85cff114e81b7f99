package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"chain-core/pkg/chain"
)

type Config struct {
	App    AppConfig              `mapstructure:"app"`
	Chains map[string]ChainConfig `mapstructure:"chains"`
	Limits LimitsConfig           `mapstructure:"limits"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

// ChainConfig 单条链的静态参数，键为链标签 (如 "ethereum"、"bitcoin_cash")
type ChainConfig struct {
	ChainID string `mapstructure:"chain_id"` // 例如 "1" / "cosmoshub-4"
	Network string `mapstructure:"network"`  // mainnet / testnet
}

type LimitsConfig struct {
	MaxTxBytes int `mapstructure:"max_tx_bytes"` // 0 表示使用各链默认值
}

var (
	// ErrUnknownChain 配置中出现了无法识别的链标签
	ErrUnknownChain = errors.New("unknown chain in config")
	// ErrDuplicateChain 多个标签解析到同一条链 (如 bitcoin_cash 与 bitcoincash)
	ErrDuplicateChain = errors.New("duplicate chain in config")
)

// EnvPrefix 环境变量前缀，例如 CHAINCORE_APP_ENV
const EnvPrefix = "CHAINCORE"

// Load 读取配置文件 (可选) 与环境变量
// paths 为配置文件搜索目录，默认 "." 和 "./config"
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回不读取任何文件的默认配置
func Default() *Config {
	return &Config{App: AppConfig{Env: "development"}}
}

// Validate 检查所有链标签都能被识别，且每条链只配置一次
func (c *Config) Validate() error {
	seen := make(map[chain.Type]string, len(c.Chains))
	for tag := range c.Chains {
		t := chain.Resolve(tag)
		if !t.IsSupported() {
			return fmt.Errorf("%w: %q", ErrUnknownChain, tag)
		}
		if prev, ok := seen[t]; ok {
			return fmt.Errorf("%w: %q and %q both name %s", ErrDuplicateChain, prev, tag, t)
		}
		seen[t] = tag
	}
	if c.Limits.MaxTxBytes < 0 {
		return fmt.Errorf("limits.max_tx_bytes must not be negative")
	}
	return nil
}

// Chain 返回某条链的配置，没有配置时返回零值
func (c *Config) Chain(t chain.Type) ChainConfig {
	if c == nil {
		return ChainConfig{}
	}
	for tag, cc := range c.Chains {
		if chain.Resolve(tag) == t {
			return cc
		}
	}
	return ChainConfig{}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("limits.max_tx_bytes", 0)
}
