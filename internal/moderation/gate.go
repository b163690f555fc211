// Package moderation 提供两段式文本审核：先走确定性的屏蔽词扫描，
// 通过后才调用生成式分类器。屏蔽词是安全底线；分类器不可用或输出
// 不可解析时有意放行（fail-open），避免本地模型故障让产品不可用。
package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/omnimind/omnimind-engine/internal/llmparse"
)

// Verdict 是一次审核的结构化结论。仅在内存中存在，不落库。
type Verdict struct {
	IsSafe       bool     `json:"isSafe"`
	FlaggedTerms []string `json:"flaggedTerms,omitempty"`
	RiskScore    float64  `json:"riskScore"`
	Feedback     string   `json:"feedback,omitempty"`
	Suggestion   string   `json:"suggestion,omitempty"`
}

// TextGenerator 是审核分类器依赖的最小生成接口。
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) string
}

// Config 控制审核门的行为。
type Config struct {
	LLMEnabled   bool
	ExtraBlocked []string
}

// Gate implements the two-stage moderation pipeline. Safe for concurrent
// use; the blocklist is fixed after construction.
type Gate struct {
	generator  TextGenerator
	llmEnabled bool
	blocklist  []string
}

// defaultBlocklist 覆盖侮辱、自伤、暴力与药物滥用词汇。全部小写 ASCII，
// 以保证大小写无关匹配与等长打码的字节偏移稳定。
var defaultBlocklist = []string{
	"idiot", "stupid", "imbecile", "moron", "worthless",
	"kill myself", "kill you", "suicide", "self-harm", "cut myself",
	"i hate you", "beat you", "punch", "overdose", "get high on",
}

const (
	blockedFeedback   = "Your message contains language that can be hurtful to you or to others in this community."
	blockedSuggestion = "Try naming the feeling underneath instead — for example: \"I'm feeling really overwhelmed right now.\""
)

// NewGate 创建审核门。generator 为 nil 时只保留确定性阶段。
func NewGate(generator TextGenerator, cfg Config) *Gate {
	blocklist := append([]string(nil), defaultBlocklist...)
	for _, term := range cfg.ExtraBlocked {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			blocklist = append(blocklist, term)
		}
	}

	return &Gate{
		generator:  generator,
		llmEnabled: cfg.LLMEnabled,
		blocklist:  blocklist,
	}
}

// Analyze 审核一段文本。阶段一命中即短路，阶段二的结论解析失败时放行。
func (g *Gate) Analyze(ctx context.Context, text string) Verdict {
	if flagged := g.matchBlocklist(text); len(flagged) > 0 {
		return Verdict{
			IsSafe:       false,
			FlaggedTerms: flagged,
			RiskScore:    0.9,
			Feedback:     blockedFeedback,
			Suggestion:   blockedSuggestion,
		}
	}

	if !g.llmEnabled || g.generator == nil {
		return safeVerdict()
	}

	raw := g.generator.Generate(ctx, classifierPrompt(text), 160)
	payload, err := parseClassifierOutput(raw)
	if err != nil {
		if strings.Contains(strings.ToLower(raw), "unsafe") {
			return Verdict{
				IsSafe:     false,
				RiskScore:  0.75,
				Feedback:   blockedFeedback,
				Suggestion: blockedSuggestion,
			}
		}
		log.Printf("[moderation] classifier output unparseable, failing open: %v", err)
		return safeVerdict()
	}

	if !*payload.Safe {
		verdict := Verdict{
			IsSafe:     false,
			RiskScore:  0.8,
			Feedback:   strings.TrimSpace(payload.Reason),
			Suggestion: strings.TrimSpace(payload.Suggestion),
		}
		if verdict.Feedback == "" {
			verdict.Feedback = blockedFeedback
		}
		if verdict.Suggestion == "" {
			verdict.Suggestion = blockedSuggestion
		}
		return verdict
	}

	return safeVerdict()
}

// Censor 将屏蔽词替换为等长的星号。纯函数式处理，不经过分类器；
// 对已打码文本再次调用不改变结果。
func (g *Gate) Censor(text string) string {
	lower := lowerASCII(text)
	out := []byte(text)
	for _, term := range g.blocklist {
		offset := 0
		for {
			i := strings.Index(lower[offset:], term)
			if i < 0 {
				break
			}
			start := offset + i
			for j := start; j < start+len(term); j++ {
				out[j] = '*'
			}
			offset = start + len(term)
		}
	}
	return string(out)
}

func (g *Gate) matchBlocklist(text string) []string {
	lower := lowerASCII(text)
	var flagged []string
	for _, term := range g.blocklist {
		if strings.Contains(lower, term) {
			flagged = append(flagged, term)
		}
	}
	return flagged
}

func safeVerdict() Verdict {
	return Verdict{IsSafe: true, RiskScore: 0.1}
}

// classifierPayload 是分类器约定的固定结构。Safe 用指针区分
// "显式声明安全"与"字段缺失"。
type classifierPayload struct {
	Safe       *bool  `json:"safe"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

func classifierPrompt(text string) string {
	return fmt.Sprintf(`You are a strict safety moderator for a mental-wellness community.
Classify the user text below. Mark it unsafe if it contains insults, harassment,
encouragement of self-harm, violence, or drug abuse.
Respond with ONLY a JSON object shaped as {"safe": true or false, "reason": "...", "suggestion": "..."}.

Text: %q
JSON:`, text)
}

// parseClassifierOutput 从原始输出中提取第一个配平 JSON 对象并解析。
func parseClassifierOutput(raw string) (*classifierPayload, error) {
	fragment, ok := llmparse.FirstObject(raw)
	if !ok {
		return nil, fmt.Errorf("missing json object in classifier output")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(fragment), payload); err != nil {
		return nil, err
	}
	if payload.Safe == nil {
		return nil, fmt.Errorf("classifier output missing safe field")
	}
	return payload, nil
}

// lowerASCII 仅对 A-Z 做小写化，保持字节偏移与原文一致。
func lowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}

	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
