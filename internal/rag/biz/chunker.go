package biz

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kart-io/verbatim-rag/internal/pkg/rag/textutil"
)

// UnknownSection 出现在首个章节标题之前的文本所属的伪章节。
const UnknownSection = "UNKNOWN"

// 分块策略。
const (
	StrategySection = "section"
	StrategyWindow  = "window"
)

const paragraphSeparator = "\n\n"

// 元数据键。
const (
	MetaSource           = "source"
	MetaSequenceIndex    = "sequence_index"
	MetaSectionName      = "section_name"
	MetaSectionPartIndex = "section_part_index"
)

// Document 待索引的源文档。
type Document struct {
	// Source 来源标识，通常为文件名，同时作为分块 ID 前缀。
	Source string
	Text   string
}

// Chunk 表示一个检索单元。
type Chunk struct {
	ID               string
	Text             string
	Source           string
	SequenceIndex    int
	SectionName      string
	SectionPartIndex int
}

// Metadata 返回随向量一起存储的元数据。
func (c *Chunk) Metadata() map[string]any {
	return map[string]any{
		MetaSource:           c.Source,
		MetaSequenceIndex:    c.SequenceIndex,
		MetaSectionName:      c.SectionName,
		MetaSectionPartIndex: c.SectionPartIndex,
	}
}

// ChunkID 返回确定性的分块 ID。
func ChunkID(source string, seq int) string {
	return fmt.Sprintf("%s-%04d", source, seq)
}

// BoundaryFunc 判断一行是否为章节标题。
type BoundaryFunc func(line string) bool

// IsUpperCaseHeader 默认章节边界：去除首尾空白后非空、全部大写（至少含一个有大小写之分的字母）
// 且不少于 3 个字符。
func IsUpperCaseHeader(line string) bool {
	t := strings.TrimSpace(line)
	if textutil.RuneLen(t) < 3 {
		return false
	}
	cased := false
	for _, r := range t {
		if unicode.IsLower(r) || unicode.IsTitle(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// ChunkerConfig 分块配置。
type ChunkerConfig struct {
	// MaxChars 单个分块的最大字符数（按 Unicode 字符计）。
	MaxChars int
	// Strategy 分块策略：section（默认）或 window。
	Strategy string
	// Overlap window 策略下相邻窗口的重叠字符数。
	Overlap int
}

// DefaultChunkerConfig 返回默认分块配置。
func DefaultChunkerConfig() *ChunkerConfig {
	return &ChunkerConfig{
		MaxChars: 900,
		Strategy: StrategySection,
		Overlap:  100,
	}
}

// ChunkerOption 配置 Chunker。
type ChunkerOption func(*Chunker)

// WithBoundary 替换章节边界判断函数。
func WithBoundary(fn BoundaryFunc) ChunkerOption {
	return func(c *Chunker) {
		if fn != nil {
			c.boundary = fn
		}
	}
}

// Chunker 将文档切分为章节内、长度受限的分块。输出只取决于输入，可重复。
type Chunker struct {
	config   *ChunkerConfig
	boundary BoundaryFunc
}

// NewChunker 创建分块器。
func NewChunker(config *ChunkerConfig, opts ...ChunkerOption) *Chunker {
	if config == nil {
		config = DefaultChunkerConfig()
	}
	c := &Chunker{
		config:   config,
		boundary: IsUpperCaseHeader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type section struct {
	name  string
	lines []string
}

func (s *section) hasContent() bool {
	for _, l := range s.lines {
		if strings.TrimSpace(l) != "" {
			return true
		}
	}
	return false
}

// Chunk 切分文档。空文档或仅含空白的文档返回空切片。
func (c *Chunker) Chunk(source, text string) []*Chunk {
	var chunks []*Chunk
	seq := 0
	for _, sec := range c.sections(text) {
		var parts []string
		if c.config.Strategy == StrategyWindow {
			parts = c.windows(sec)
		} else {
			parts = pack(paragraphs(sec.lines), c.config.MaxChars)
		}
		for part, t := range parts {
			chunks = append(chunks, &Chunk{
				ID:               ChunkID(source, seq),
				Text:             t,
				Source:           source,
				SequenceIndex:    seq,
				SectionName:      sec.name,
				SectionPartIndex: part,
			})
			seq++
		}
	}
	return chunks
}

// sections 按标题行切分，标题行保留为新章节的第一行。
func (c *Chunker) sections(text string) []*section {
	lines := strings.Split(textutil.NormalizeNewlines(text), "\n")

	var out []*section
	cur := &section{name: UnknownSection}
	for _, line := range lines {
		if c.boundary(line) {
			if cur.hasContent() {
				out = append(out, cur)
			}
			cur = &section{name: strings.TrimSpace(line), lines: []string{line}}
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	if cur.hasContent() {
		out = append(out, cur)
	}
	return out
}

// paragraphs 以空白行分段，去除首尾空白并丢弃空段落。
func paragraphs(lines []string) []string {
	var (
		out []string
		buf []string
	)
	flush := func() {
		if p := strings.TrimSpace(strings.Join(buf, "\n")); p != "" {
			out = append(out, p)
		}
		buf = buf[:0]
	}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		buf = append(buf, l)
	}
	flush()
	return out
}

// pack 贪心合并段落。单个超长段落独立成块，不做截断。
func pack(paras []string, maxChars int) []string {
	var (
		out     []string
		current []string
		size    int
	)
	for _, p := range paras {
		n := textutil.RuneLen(p)
		overhead := 0
		if len(current) > 0 {
			overhead = len(paragraphSeparator)
		}
		if len(current) > 0 && size+overhead+n > maxChars {
			out = append(out, strings.Join(current, paragraphSeparator))
			current, size, overhead = nil, 0, 0
		}
		current = append(current, p)
		size += overhead + n
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, paragraphSeparator))
	}
	return out
}

// windows 在章节内按固定窗口切分。
func (c *Chunker) windows(sec *section) []string {
	body := strings.Join(paragraphs(sec.lines), paragraphSeparator)
	var out []string
	for _, w := range textutil.SplitIntoChunks(body, c.config.MaxChars, c.config.Overlap) {
		if t := strings.TrimSpace(w); t != "" {
			out = append(out, t)
		}
	}
	return out
}
