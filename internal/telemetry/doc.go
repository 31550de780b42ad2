// Package telemetry 封装 OpenTelemetry SDK 初始化逻辑，
// 为 inpaintflow 提供 TracerProvider 和 MeterProvider。
// HTTP 中间件与推理调用通过全局 otel API 取得 tracer/meter，
// 遥测禁用时保持 noop 实现，不连接任何外部服务。
package telemetry
