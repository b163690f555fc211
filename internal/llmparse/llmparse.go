// Package llmparse 从生成模型的原始文本输出中提取第一个配平的 JSON 片段。
// 模型输出被视为不可信的自由文本：片段前后可能夹杂解释、Markdown 围栏或
// 回显的提示词，提取器只负责定位配平片段，语义校验交给调用方的 Unmarshal。
package llmparse

import "strings"

// FirstObject returns the first balanced {...} fragment in s.
func FirstObject(s string) (string, bool) {
	return firstBalanced(s, '{', '}')
}

// FirstArray returns the first balanced [...] fragment in s.
func FirstArray(s string) (string, bool) {
	return firstBalanced(s, '[', ']')
}

// firstBalanced 扫描配平片段，正确跳过字符串字面量与转义符。
func firstBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
