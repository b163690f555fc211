// Package content 封装面向结构化产物的生成器：冥想引导词、测验题目与学习计划。
// 三者都复用推理运行时与长期记忆检索，并在模型输出不可用时退回确定性占位产物。
package content

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/omnimind/omnimind-engine/internal/memory"
)

// TextGenerator 是内容生成器依赖的补全接口。
type TextGenerator interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// MemorySearcher 按相似度检索用户记忆，为生成提供上下文。
type MemorySearcher interface {
	Search(ctx context.Context, ownerID, query string, limit int, threshold float64) ([]memory.Record, error)
}

// FallbackScript 是模型不可用时返回的固定呼吸引导词。
const FallbackScript = "Focus on your breathing. Breathe in deeply... breathe out slowly. " +
	"Feel the air moving in and out. With every breath, let your shoulders soften a little more. " +
	"(This is a pre-written script; generation is temporarily unavailable.)"

const scriptMaxTokens = 200

// Meditation 生成有主题的冥想引导词。
type Meditation struct {
	generator TextGenerator
	memories  MemorySearcher
}

// NewMeditation 组装冥想生成器。memories 可为 nil，此时不做检索增强。
func NewMeditation(generator TextGenerator, memories MemorySearcher) *Meditation {
	return &Meditation{generator: generator, memories: memories}
}

// GenerateScript 围绕 topic 生成一段引导词。ownerID 非空时先检索该用户的
// 相关记忆拼入提示词；任何失败都退回固定脚本，绝不让 UI 流程失败。
func (m *Meditation) GenerateScript(ctx context.Context, topic, ownerID string) string {
	contextText := m.contextFor(ctx, topic, ownerID)

	var builder strings.Builder
	fmt.Fprintf(&builder, "Instruction: Write a calm and relaxing guided meditation script about %q. Use simple, soothing language.\n", topic)
	if contextText != "" {
		fmt.Fprintf(&builder, "Context about this person: %s\n", truncate(contextText, 500))
	}
	builder.WriteString("\nScript:")

	script, err := m.generator.Complete(ctx, builder.String(), scriptMaxTokens)
	if err != nil {
		log.Printf("[content] meditation generation failed: %v", err)
		return FallbackScript
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return FallbackScript
	}
	return script
}

func (m *Meditation) contextFor(ctx context.Context, topic, ownerID string) string {
	if m.memories == nil || strings.TrimSpace(ownerID) == "" {
		return ""
	}
	records, err := m.memories.Search(ctx, ownerID, topic, 3, 0)
	if err != nil {
		log.Printf("[content] memory retrieval failed, generating without context: %v", err)
		return ""
	}
	parts := make([]string, 0, len(records))
	for _, record := range records {
		parts = append(parts, record.Content)
	}
	return strings.Join(parts, "\n")
}

// truncate 按字节截断，提示词里的上下文块只需要大致长度控制。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
