// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

本包通过 Manager 封装 net/http.Server。inpaintflow 进程内同时运行
API 服务器（POST /inpaint/ 与健康检查）和 metrics 服务器（/metrics），
两者各由一个 Manager 管理，并通过 WaitForSignal 统一等待退出信号。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/ListenAddr 等方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头与优雅关闭超时。
    写入超时需要覆盖推理耗时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在超时内等待进行中的请求写完响应。
  - 信号监听：WaitForSignal 监听 SIGINT/SIGTERM 与各服务器的异常退出。
*/
package server
