// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 inpaintflow HTTP API 的请求处理器实现。

# 概述

handlers 包实现外扩端点 POST /inpaint/ 与健康检查端点，
以及统一的 JSON 响应/错误处理。所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - InpaintHandler：解析 multipart 表单，校验尺寸，解码图像，
    构建填充图与蒙版，调用推理并以 image/jpeg 返回结果
  - HealthHandler：存活（/health, /healthz）、就绪（/ready, /readyz）与版本信息
  - Response：统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ErrorInfo：结构化错误信息，含 code、message 与字段级错误
  - ResponseWriter：包装 http.ResponseWriter 以捕获状态码与写出字节数

# 主要能力

  - 尺寸校验先于读取图像：正整数、上限与倍数约束，失败返回 422
  - 空上传 400、无法解码 400、其他读取失败 500、超出大小限制 413
  - types.ErrorCode 到 HTTP 状态码的统一映射，错误先记录日志再返回
  - 可插拔就绪检查：RegisterCheck 注册模型后端与 Redis 的 ping
*/
package handlers
