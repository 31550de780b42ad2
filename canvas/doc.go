// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package canvas 提供扩图（outpainting）前的图像几何处理。

# 概述

canvas 负责把上传的原图居中放入目标尺寸的画布，并生成与之严格对齐的
二值 mask。padding 与 mask 共用同一个几何计算函数 CalculatePadding，
保证两者永远不会出现几何漂移。

# 核心函数

  - CalculatePadding：根据原图与目标尺寸计算四边 padding（奇数像素归右/下）
  - Pad：生成目标尺寸的新画布，原图居中，边框填充黑色
  - BuildMask：生成单通道 mask：0 保留原图，255 交给模型生成
  - Prepare：一次性生成 padded 图像、mask 与 Padding
  - Decode：解码上传字节，区分格式/损坏错误与意外错误
  - EncodeJPEG / EncodePNG：结果编码
*/
package canvas
