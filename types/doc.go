// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 inpaintflow 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 canvas、inpaint、api
等上层模块提供统一的错误契约与 context 传播工具。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 HTTP 状态码与字段级校验错误
  - FieldError：单个请求字段的校验失败描述
  - WithRequestID：在 context 中传播请求 ID
*/
package types
