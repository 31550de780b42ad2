// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package inpaint 定义生成模型的调用边界。

# 概述

Pipeline 是外部生成模型的抽象：接收已填充的图像、同尺寸的遮罩与
生成参数，返回一张或多张结果图像。具体实现位于 inpaint/pipeline
子包，启动时按配置选择一个后端并作为进程级单例注入。

Invoker 负责一次完整的推理调用：

 1. 由 Settings 与请求尺寸组装 GenerationParameters（未设置项回退到默认值）
 2. 取得推理闸门（internal/lock），受可选的推理超时约束
 3. 调用 Pipeline，取第一张结果图像
 4. 编码为 JPEG 并返回位于起始位置的 *bytes.Reader

任何模型侧失败都会被包装为 types.ErrGenerationFailed，原始错误只写入日志，
不会暴露给客户端。推理不做重试。
*/
package inpaint
