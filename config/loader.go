// =============================================================================
// 📦 inpaintflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + .env 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithDotEnv(".env").
//	    WithEnvPrefix("INPAINT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 旧版无前缀环境变量 → 带前缀环境变量
// .env 文件中的值只在进程环境中不存在同名变量时生效
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 inpaintflow 的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Generation 生成参数
	Generation GenerationConfig `yaml:"generation" env:"GENERATION"`

	// Model 模型后端配置
	Model ModelConfig `yaml:"model" env:"MODEL"`

	// Inference 推理调度配置
	Inference InferenceConfig `yaml:"inference" env:"INFERENCE"`

	// Validation 请求校验策略
	Validation ValidationConfig `yaml:"validation" env:"VALIDATION"`

	// Concurrency 推理闸门配置
	Concurrency ConcurrencyConfig `yaml:"concurrency" env:"CONCURRENCY"`

	// Redis 配置（concurrency.mode=redis 时使用）
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时（需覆盖推理耗时）
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 上传请求体上限（字节）
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	// 每个 IP 每秒请求数
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// CORS 允许的来源，为空表示不启用 CORS
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// GenerationConfig 生成参数，为零值时使用内置默认值
type GenerationConfig struct {
	// 正向提示词
	Prompt string `yaml:"prompt" env:"PROMPT"`
	// 负向提示词
	NegativePrompt string `yaml:"negative_prompt" env:"NEGATIVE_PROMPT"`
	// CFG 引导系数
	GuidanceScale float64 `yaml:"guidance_scale" env:"GUIDANCE_SCALE"`
	// 重绘强度 (0, 1]
	Strength float64 `yaml:"strength" env:"STRENGTH"`
	// 采样步数
	NumInferenceSteps int `yaml:"num_inference_steps" env:"NUM_INFERENCE_STEPS"`
	// 输出 JPEG 质量
	JPEGQuality int `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
}

// ModelConfig 模型后端配置
type ModelConfig struct {
	// 后端: sdwebui, cloudflare, openai
	Provider string `yaml:"provider" env:"PROVIDER"`
	// 模型名称
	Name string `yaml:"name" env:"NAME"`
	// 基础 URL
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// API Key / Token
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// Cloudflare 账户 ID
	AccountID string `yaml:"account_id" env:"ACCOUNT_ID"`
	// 单次 HTTP 请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// InferenceConfig 推理调度配置
type InferenceConfig struct {
	// 同时占用模型的最大调用数
	MaxConcurrent int `yaml:"max_concurrent" env:"MAX_CONCURRENT"`
	// 等待闸门 + 推理的总时长上限，0 表示不限制
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ValidationConfig 目标尺寸校验策略
type ValidationConfig struct {
	// 宽高上限
	MaxDimension int `yaml:"max_dimension" env:"MAX_DIMENSION"`
	// 宽高必须是该值的整数倍，1 表示不限制
	MultipleOf int `yaml:"multiple_of" env:"MULTIPLE_OF"`
}

// ConcurrencyConfig 推理闸门配置
type ConcurrencyConfig struct {
	// 模式: local, redis
	Mode string `yaml:"mode" env:"MODE"`
	// Redis 锁键前缀
	LockKey string `yaml:"lock_key" env:"LOCK_KEY"`
	// Redis 锁过期时间
	LockTTL time.Duration `yaml:"lock_ttl" env:"LOCK_TTL"`
	// Redis 锁轮询间隔
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 是否使用 TLS 连接
	TLS bool `yaml:"tls" env:"TLS"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	dotEnvPath string
	envPrefix  string
	legacyEnv  bool
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "INPAINT",
		legacyEnv:  true,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithDotEnv 设置 .env 文件路径
func (l *Loader) WithDotEnv(path string) *Loader {
	l.dotEnvPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithLegacyEnv 是否读取旧版无前缀变量（PROMPT、MODEL_NAME 等）
func (l *Loader) WithLegacyEnv(enabled bool) *Loader {
	l.legacyEnv = enabled
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. .env 文件写入进程环境（不覆盖已有变量）
	if l.dotEnvPath != "" {
		if err := l.loadDotEnv(); err != nil {
			return nil, fmt.Errorf("failed to load dotenv file: %w", err)
		}
	}

	// 4. 旧版无前缀变量
	if l.legacyEnv {
		if err := loadLegacyEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to load legacy env: %w", err)
		}
	}

	// 5. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 6. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadDotEnv 加载 .env，文件不存在时忽略
func (l *Loader) loadDotEnv() error {
	if err := godotenv.Load(l.dotEnvPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// legacyEnvFields 旧版部署使用的无前缀变量
func legacyEnvFields(cfg *Config) map[string]reflect.Value {
	return map[string]reflect.Value{
		"PROMPT":              reflect.ValueOf(&cfg.Generation.Prompt).Elem(),
		"NEGATIVE_PROMPT":     reflect.ValueOf(&cfg.Generation.NegativePrompt).Elem(),
		"GUIDANCE_SCALE":      reflect.ValueOf(&cfg.Generation.GuidanceScale).Elem(),
		"STRENGTH":            reflect.ValueOf(&cfg.Generation.Strength).Elem(),
		"NUM_INFERENCE_STEPS": reflect.ValueOf(&cfg.Generation.NumInferenceSteps).Elem(),
		"MODEL_NAME":          reflect.ValueOf(&cfg.Model.Name).Elem(),
	}
}

func loadLegacyEnv(cfg *Config) error {
	for key, field := range legacyEnvFields(cfg) {
		value := os.Getenv(key)
		if value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "max_upload_bytes must be positive")
	}

	// 验证生成参数
	if c.Generation.GuidanceScale < 0 {
		errs = append(errs, "guidance_scale must not be negative")
	}
	if c.Generation.Strength < 0 || c.Generation.Strength > 1 {
		errs = append(errs, "strength must be between 0 and 1")
	}
	if c.Generation.NumInferenceSteps < 0 {
		errs = append(errs, "num_inference_steps must not be negative")
	}
	if c.Generation.JPEGQuality < 0 || c.Generation.JPEGQuality > 100 {
		errs = append(errs, "jpeg_quality must be between 0 and 100")
	}

	// 验证模型配置
	switch strings.ToLower(c.Model.Provider) {
	case "sdwebui":
	case "cloudflare":
		if c.Model.AccountID == "" || c.Model.APIKey == "" {
			errs = append(errs, "cloudflare provider requires account_id and api_key")
		}
	case "openai":
		if c.Model.APIKey == "" {
			errs = append(errs, "openai provider requires api_key")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown model provider %q", c.Model.Provider))
	}

	// 验证推理与校验策略
	if c.Inference.MaxConcurrent < 1 {
		errs = append(errs, "inference.max_concurrent must be at least 1")
	}
	if c.Inference.Timeout < 0 {
		errs = append(errs, "inference.timeout must not be negative")
	}
	if c.Validation.MaxDimension <= 0 {
		errs = append(errs, "validation.max_dimension must be positive")
	}
	if c.Validation.MultipleOf < 1 {
		errs = append(errs, "validation.multiple_of must be at least 1")
	}

	// 验证闸门配置
	switch c.Concurrency.Mode {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required when concurrency.mode is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown concurrency mode %q", c.Concurrency.Mode))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
