// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 请求、
推理调用、推理闸门与上传处理四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离，
由 cmd/inpaintflow 的独立 metrics 端口通过 promhttp 暴露。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 推理指标：调用总数、耗时、输出 JPEG 大小、当前占用模型的调用数，
    按 provider/model 分组。
  - 闸门指标：等待耗时与超时次数，按 local/redis 模式分组。
  - 上传指标：按错误码统计的拒绝次数、按格式统计的成功解码次数、
    累计交给模型生成的像素数。
*/
package metrics
