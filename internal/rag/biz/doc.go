// Package biz 提供 RAG 逐字抽取服务的业务逻辑层。
//
// 组件按依赖顺序排列：
//   - Chunker: 按章节切分文档，生成带位置元数据的稳定分块
//   - Indexer: 先完成全部嵌入，再原地清空集合并一次性写入
//   - Retriever: 嵌入查询并取回 top-K 最近分块
//   - Extractor: 构造严格抽取提示词，调用模型并后处理为答案或 NOT_FOUND
//   - RAGService: 组合以上组件，附带查询缓存与指标
//
// 所有协作者（Embedding、生成模型、向量存储）均通过构造函数注入。
package biz
