package biz

import (
	"github.com/kart-io/verbatim-rag/pkg/utils/errors"
)

// 业务错误。均为 *errors.Errno，可用 errors.Is 按错误码匹配。
var (
	// ErrMissingSourceDocument 源文档缺失、为空或无法切分出任何分块。
	ErrMissingSourceDocument = errors.ErrRAGMissingDocument
	// ErrEmbedding Embedding 调用失败或未返回向量。
	ErrEmbedding = errors.ErrRAGEmbedding
	// ErrGeneration 生成模型调用失败。
	ErrGeneration = errors.ErrRAGGeneration
	// ErrStore 向量存储读写失败。
	ErrStore = errors.ErrRAGStore
)
