// Package docutil 提供源文档读取相关的工具函数。
package docutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrNotFound 源文档不存在。
var ErrNotFound = errors.New("document not found")

// ReadDocument 读取整个文本文件，非法 UTF-8 字节被丢弃而不是报错。
// 返回文件基础名作为来源标识。
func ReadDocument(path string) (source, text string, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", "", err
	}
	defer f.Close()

	text, err = ReadText(f)
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", path, err)
	}
	return SourceName(path), text, nil
}

// ReadText 从 reader 读取全部内容，丢弃非法 UTF-8 字节。
func ReadText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s := string(data)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	return s, nil
}

// SourceName 返回路径的基础文件名，作为 chunk ID 前缀。
func SourceName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) {
		return "document"
	}
	return base
}
