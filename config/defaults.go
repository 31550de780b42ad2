// =============================================================================
// 📦 inpaintflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Generation:  DefaultGenerationConfig(),
		Model:       DefaultModelConfig(),
		Inference:   DefaultInferenceConfig(),
		Validation:  DefaultValidationConfig(),
		Concurrency: DefaultConcurrencyConfig(),
		Redis:       DefaultRedisConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    6 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		MaxUploadBytes:  20 << 20,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultGenerationConfig 返回默认生成参数。提示词留空，由 inpaint 包回退到内置文案。
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		GuidanceScale:     7.5,
		Strength:          1.0,
		NumInferenceSteps: 50,
		JPEGQuality:       95,
	}
}

// DefaultModelConfig 返回默认模型配置
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider: "sdwebui",
		BaseURL:  "http://127.0.0.1:7860",
		Timeout:  5 * time.Minute,
	}
}

// DefaultInferenceConfig 返回默认推理调度配置
func DefaultInferenceConfig() InferenceConfig {
	return InferenceConfig{
		MaxConcurrent: 1,
		Timeout:       5 * time.Minute,
	}
}

// DefaultValidationConfig 返回默认校验策略
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxDimension: 4096,
		MultipleOf:   8,
	}
}

// DefaultConcurrencyConfig 返回默认闸门配置
func DefaultConcurrencyConfig() ConcurrencyConfig {
	return ConcurrencyConfig{
		Mode:         "local",
		LockKey:      "inpaintflow:inference",
		LockTTL:      30 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "inpaintflow",
		SampleRate:   0.1,
	}
}
