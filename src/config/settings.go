// Package config 读取配置文件、.env 和 NULLSHOT_ 前缀的环境变量
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，例如 NULLSHOT_AI_PROVIDER
const EnvPrefix = "NULLSHOT"

// ProviderSettings 单个远程模型后端的配置
type ProviderSettings struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"` // 可选，为空时使用官方地址
	Model   string `mapstructure:"model"`
}

// AISettings 模型相关配置
type AISettings struct {
	Provider       string           `mapstructure:"provider"`
	Model          string           `mapstructure:"model"` // 覆盖当前 provider 的模型
	Timeout        time.Duration    `mapstructure:"timeout"`
	RequestsPerMin int              `mapstructure:"requests_per_min"`
	Proxy          string           `mapstructure:"proxy"`
	Fallback       bool             `mapstructure:"fallback"`
	PromptsFile    string           `mapstructure:"prompts_file"`
	Gemini         ProviderSettings `mapstructure:"gemini"`
	OpenAI         ProviderSettings `mapstructure:"openai"`
	DeepSeek       ProviderSettings `mapstructure:"deepseek"`
	LocalLLM       ProviderSettings `mapstructure:"local_llm"`
}

// Settings 全部配置
type Settings struct {
	Verbose bool   `mapstructure:"verbose"`
	LogFile string `mapstructure:"log_file"`

	AI AISettings `mapstructure:"ai"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Database struct {
		Enabled bool   `mapstructure:"enabled"`
		Driver  string `mapstructure:"driver"` // sqlite | mysql | postgres
		DSN     string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Etherscan struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
		ChainID int64  `mapstructure:"chain_id"`
	} `mapstructure:"etherscan"`

	RPC struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"rpc"`

	Slack struct {
		Enabled bool   `mapstructure:"enabled"`
		Token   string `mapstructure:"token"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"slack"`

	Report struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"report"`
}

// SetDefaults 写入默认值，所有可由环境变量覆盖的键都必须在这里出现
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("log_file", "")

	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", 60*time.Second)
	v.SetDefault("ai.requests_per_min", 20)
	v.SetDefault("ai.proxy", "")
	v.SetDefault("ai.fallback", true)
	v.SetDefault("ai.prompts_file", "")
	for _, p := range []string{"gemini", "openai", "deepseek", "local_llm"} {
		v.SetDefault("ai."+p+".api_key", "")
		v.SetDefault("ai."+p+".base_url", "")
		v.SetDefault("ai."+p+".model", "")
	}

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "nullshot.db")

	v.SetDefault("etherscan.api_key", "")
	v.SetDefault("etherscan.base_url", "https://api.etherscan.io/v2")
	v.SetDefault("etherscan.chain_id", 1)
	v.SetDefault("rpc.url", "")

	v.SetDefault("slack.enabled", false)
	v.SetDefault("slack.token", "")
	v.SetDefault("slack.channel", "#audits")

	v.SetDefault("report.dir", "reports")
}

// NewViper 创建带默认值和环境变量绑定的 viper 实例，并读取配置文件。
// cfgFile 为空时在当前目录查找 nullshot.yaml，找不到不算错误
func NewViper(cfgFile string) (*viper.Viper, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("nullshot")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Decode 把 viper 中的值解码为 Settings，并补齐约定俗成的环境变量
func Decode(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	s.applyEnvFallbacks()
	return &s, nil
}

// Load 等价于 NewViper + Decode
func Load(cfgFile string) (*Settings, error) {
	v, err := NewViper(cfgFile)
	if err != nil {
		return nil, err
	}
	return Decode(v)
}
