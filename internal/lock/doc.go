// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 lock 提供推理闸门（Gate），用于串行化对共享生成模型的访问。

# 概述

生成模型是进程级单例，且通常独占一块 GPU。HTTP 服务器会并发处理请求，
因此所有推理调用在进入模型之前必须先取得闸门。闸门容量由
inference.max_concurrent 决定，默认为 1，即完全串行。

# 核心类型

  - Gate：闸门接口，Acquire 在取得槽位后返回释放函数。
  - LocalLock：基于 golang.org/x/sync/semaphore 的进程内加权信号量。
  - RedisLock：基于 Redis SET NX PX 的跨副本锁，释放与续期均通过
    Lua 脚本校验 token，多个副本共享同一推理后端时使用。

# 取消与超时

Acquire 遵循 context：调用方取消或超时后立即返回 ctx.Err()，
不会占用槽位。
*/
package lock
