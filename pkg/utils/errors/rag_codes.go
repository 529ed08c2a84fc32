package errors

import "google.golang.org/grpc/codes"

// RAG 服务代码: 20
// 错误码格式: AABBCCC

var (
	// 请求参数错误 (类别 01)
	ErrRAGInvalidRequest  = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid request parameters", "请求参数无效"))
	ErrRAGMissingDocument = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), 400, codes.FailedPrecondition, "Source document is missing or empty", "源文档缺失或为空"))

	// 查询相关错误
	ErrRAGQueryTimeout = Register(New(MakeCode(ServiceRAG, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Query timeout", "查询超时"))
	ErrRAGQueryFailed  = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), 500, codes.Internal, "Query failed", "查询失败"))

	// 索引相关错误
	ErrRAGIndexFailed = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), 500, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrRAGStore       = Register(New(MakeCode(ServiceRAG, CategoryDatabase, 1), 500, codes.Internal, "Vector store operation failed", "向量存储操作失败"))

	// 模型相关错误 (类别 10 - Network)
	ErrRAGEmbedding  = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 1), 502, codes.Unavailable, "Embedding model failed", "向量模型调用失败"))
	ErrRAGGeneration = Register(New(MakeCode(ServiceRAG, CategoryNetwork, 2), 502, codes.Unavailable, "Generation model failed", "生成模型调用失败"))

	ErrRAGStatsUnavailable = Register(New(MakeCode(ServiceRAG, CategoryInternal, 5), 500, codes.Internal, "Statistics unavailable", "统计信息不可用"))
)
