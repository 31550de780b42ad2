// Package config 提供 inpaintflow 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → .env 文件 → 环境变量 的顺序叠加，
// 启动时加载一次，之后只读。带 INPAINT_ 前缀的变量与旧版部署使用的
// 无前缀变量（PROMPT、NEGATIVE_PROMPT、GUIDANCE_SCALE、STRENGTH、
// NUM_INFERENCE_STEPS、MODEL_NAME）都会被读取，前者优先。
package config
