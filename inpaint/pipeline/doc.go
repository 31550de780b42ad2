// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package pipeline 提供 inpaint.Pipeline 的具体后端实现。

# 后端

  - sdwebui：AUTOMATIC1111 Stable Diffusion WebUI，POST /sdapi/v1/img2img，
    图像与遮罩以 base64 PNG 传输。
  - cloudflare：Workers AI，默认模型 @cf/runwayml/stable-diffusion-v1-5-inpainting，
    图像与遮罩以 PNG 字节数组传输。
  - openai：/v1/images/edits，遮罩转换为 alpha 通道（透明区域即生成区域）。
    dall-e-2 只接受 256x256、512x512、1024x1024；gpt-image-1 只接受
    1024x1024、1536x1024、1024x1536。OpenAIPipeline 实现 inpaint.SizeValidator，
    其他目标尺寸在等待闸门之前就以 VALIDATION_ERROR (422) 拒绝。

New 根据配置选择后端，这一步相当于启动时"加载模型"；失败时返回
包装后的 ErrLoadModel，进程应当直接退出。
*/
package pipeline
