// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 inpaintflow 服务端程序入口。

# 概述

cmd/inpaintflow 是外扩服务的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件与 .env 加载、
结构化日志（zap）、Prometheus 指标采集与 OpenTelemetry 链路追踪。

# 核心类型

  - Server：主服务器，装配模型后端、推理闸门、Handlers，
    管理 API 与 Metrics 双端口及优雅关闭
  - Middleware：HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID、OTelTracing、MetricsMiddleware、
    SecurityHeaders、RequestLogger、CORS、RateLimiter（基于 IP）
  - 推理闸门：concurrency.mode 选择进程内信号量或 Redis 分布式锁
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 关闭 HTTP → 关闭 Metrics → 释放闸门 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
