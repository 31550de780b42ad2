package inpaint

import (
	"context"
	"errors"
	"image"
)

// ErrUnsupportedSize 后端不接受请求的输出尺寸
var ErrUnsupportedSize = errors.New("unsupported output size")

// Pipeline 外部生成模型
type Pipeline interface {
	// Name 返回后端标识，例如 sdwebui、cloudflare、openai
	Name() string

	// Model 返回后端实际使用的模型名称
	Model() string

	// Inpaint 在 Mask 标记为 255 的区域生成内容
	Inpaint(ctx context.Context, req *Request) (*Result, error)
}

// SizeValidator 由只接受部分输出尺寸的后端实现。
// 返回的错误应包装 ErrUnsupportedSize。
type SizeValidator interface {
	ValidateSize(width, height int) error
}

// Request 一次推理调用的输入。Image 与 Mask 尺寸一致且等于 Width x Height。
type Request struct {
	Image *image.RGBA
	Mask  *image.Gray

	GenerationParameters
}

// Result 推理结果
type Result struct {
	Images []image.Image
}
