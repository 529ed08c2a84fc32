// Package store 提供 RAG 服务的向量存储层。
//
// VectorStore 绑定单个命名集合，支持按 ID 覆盖写入、最近邻检索、
// 原地清空（ListIDs + Delete）与计数。内置 memory、sqlite、milvus 三种后端，
// 由 New 按配置选择。
package store
