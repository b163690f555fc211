// Package therapy 提供确定性的关键词引导回复：当生成模型不可用或输出为空
// 时，按治疗流派返回一条共情引导语，保证对话流程永不中断。
package therapy

import (
	"hash/fnv"
	"strings"

	"github.com/omnimind/omnimind-engine/internal/model/persona"
)

// Respond 根据用户话语推断最贴切的固定引导语。
// 同一输入永远得到同一输出，便于测试与回放。
func Respond(mode persona.Mode, userText string) string {
	normalized := strings.ToLower(strings.TrimSpace(userText))
	if normalized == "" {
		return fallbackDefault(mode, normalized)
	}

	bestScore := 0
	bestResponse := ""
	for _, pattern := range mode.Patterns() {
		score := 0
		for _, keyword := range pattern.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(keyword)) {
				score += 3
			}
		}
		if score > bestScore {
			bestScore = score
			bestResponse = pattern.Response
		}
	}

	if bestScore > 0 {
		return bestResponse
	}
	return fallbackDefault(mode, normalized)
}

// fallbackDefault 在未命中任何关键词时，用输入的哈希在通用引导语中
// 做确定性选择，避免连续重复同一句。
func fallbackDefault(mode persona.Mode, normalized string) string {
	defaults := mode.DefaultResponses()
	if len(defaults) == 0 {
		return "I'm here with you. Tell me more about what's on your mind."
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(normalized))
	return defaults[int(h.Sum32())%len(defaults)]
}
