package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/sync/singleflight"

	"github.com/omnimind/omnimind-engine/internal/config"
)

// FallbackReply 是生成模型不可用时返回的固定安全回复，绝不向 UI 抛异常。
const FallbackReply = "I'm having trouble gathering my thoughts right now. " +
	"Let's take one slow breath together, and please try again in a moment."

const defaultTemperature = 0.7

var errDisabled = errors.New("inference disabled: ark credentials not configured")

// generatorHandle 将聊天模型与编译好的对话链绑定为一个惰性构建单元。
type generatorHandle struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// Runtime lazily constructs and memoizes the two expensive model handles
// (embedder and generator). Concurrent first-time callers converge on a
// single in-flight construction via singleflight; a failed construction is
// not cached, so the next call retries.
//
// Runtime is safe for concurrent use. It is built once at the application
// root and injected into every consumer — no package-level state.
type Runtime struct {
	cfg config.AIConfig

	// 构造函数可在测试中替换，以统计实际构建次数。
	newChatModel func(ctx context.Context) (model.ChatModel, error)
	newEmbedder  func(ctx context.Context) (embedding.Embedder, error)

	flight singleflight.Group

	mu        sync.RWMutex
	embedder  embedding.Embedder
	generator *generatorHandle
}

// New 创建推理运行时。模型在首次使用时才会真正加载。
func New(cfg config.AIConfig) *Runtime {
	return &Runtime{
		cfg:          cfg,
		newChatModel: cfg.NewChatModel,
		newEmbedder:  cfg.NewEmbedder,
	}
}

// Enabled 表示生成模型凭证是否就绪。
func (r *Runtime) Enabled() bool { return r.cfg.Enabled() }

// StreamingEnabled 指示是否开启流式输出。
func (r *Runtime) StreamingEnabled() bool { return r.cfg.StreamResponse }

func (r *Runtime) getGenerator() (*generatorHandle, error) {
	r.mu.RLock()
	g := r.generator
	r.mu.RUnlock()
	if g != nil {
		return g, nil
	}

	v, err, _ := r.flight.Do("generator", func() (any, error) {
		r.mu.RLock()
		g := r.generator
		r.mu.RUnlock()
		if g != nil {
			return g, nil
		}

		if !r.cfg.Enabled() {
			return nil, errDisabled
		}

		// 构建使用独立的 context：共享的初始化不应被单个请求取消。
		ctx := context.Background()
		log.Println("[inference] loading text generation model...")
		chatModel, err := r.newChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}

		promptTemplate := prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		)

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(promptTemplate)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile chat chain: %w", err)
		}

		handle := &generatorHandle{chatModel: chatModel, chain: runnable}
		r.mu.Lock()
		r.generator = handle
		r.mu.Unlock()
		log.Println("[inference] text generation model ready")
		return handle, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*generatorHandle), nil
}

func (r *Runtime) getEmbedder() (embedding.Embedder, error) {
	r.mu.RLock()
	e := r.embedder
	r.mu.RUnlock()
	if e != nil {
		return e, nil
	}

	v, err, _ := r.flight.Do("embedder", func() (any, error) {
		r.mu.RLock()
		e := r.embedder
		r.mu.RUnlock()
		if e != nil {
			return e, nil
		}

		if !r.cfg.EmbeddingEnabled() {
			return nil, errDisabled
		}

		log.Println("[inference] loading embedding model...")
		emb, err := r.newEmbedder(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}

		r.mu.Lock()
		r.embedder = emb
		r.mu.Unlock()
		log.Println("[inference] embedding model ready")
		return emb, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(embedding.Embedder), nil
}

// Embed 将文本向量化。任何失败都返回 nil 切片（调用方视为"无向量可用"），
// 绝不返回具有语义的零向量。
func (r *Runtime) Embed(ctx context.Context, text string) []float32 {
	emb, err := r.getEmbedder()
	if err != nil {
		log.Printf("[inference] embedder unavailable: %v", err)
		return nil
	}

	vectors, err := emb.EmbedStrings(ctx, []string{text})
	if err != nil {
		log.Printf("[inference] embedding failed: %v", err)
		return nil
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		log.Printf("[inference] embedding returned no vector")
		return nil
	}

	out := make([]float32, len(vectors[0]))
	for i, v := range vectors[0] {
		out[i] = float32(v)
	}
	return out
}

// Complete 针对单个提示词生成文本，失败按错误返回。采样带温度，输出不保证可复现。
func (r *Runtime) Complete(ctx context.Context, promptText string, maxTokens int) (string, error) {
	handle, err := r.getGenerator()
	if err != nil {
		return "", err
	}

	msg, err := handle.chatModel.Generate(ctx,
		[]*schema.Message{schema.UserMessage(promptText)},
		model.WithTemperature(r.temperature()),
		model.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	return stripPromptEcho(msg.Content), nil
}

// Generate 与 Complete 相同，但任何失败都降级为固定回退文案，不向调用方冒泡异常。
func (r *Runtime) Generate(ctx context.Context, promptText string, maxTokens int) string {
	text, err := r.Complete(ctx, promptText, maxTokens)
	if err != nil {
		log.Printf("[inference] generation failed: %v", err)
		return FallbackReply
	}
	if text == "" {
		return FallbackReply
	}
	return text
}

// Chat 运行完整的对话链（系统指令 + 历史 + 当前输入）。
// 与 Generate 不同，Chat 把错误交还给编排器，由其决定回退策略。
func (r *Runtime) Chat(ctx context.Context, system string, history []*schema.Message, query string) (string, error) {
	handle, err := r.getGenerator()
	if err != nil {
		return "", err
	}

	msg, err := handle.chain.Invoke(ctx, chainInput(system, history, query))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}

	return stripPromptEcho(msg.Content), nil
}

// ChatStream 流式运行对话链，每个增量经 onDelta 回调送出，返回拼接后的完整回复。
func (r *Runtime) ChatStream(ctx context.Context, system string, history []*schema.Message, query string, onDelta func(chunk string) error) (string, error) {
	handle, err := r.getGenerator()
	if err != nil {
		return "", err
	}

	stream, err := handle.chain.Stream(ctx, chainInput(system, history, query))
	if err != nil {
		return "", fmt.Errorf("failed to stream chat chain: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", recvErr
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return "", err
			}
		}
	}

	full, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", err
	}
	return stripPromptEcho(full.Content), nil
}

func (r *Runtime) temperature() float32 {
	if r.cfg.Temperature != nil {
		return float32(*r.cfg.Temperature)
	}
	return defaultTemperature
}

func chainInput(system string, history []*schema.Message, query string) map[string]any {
	return map[string]any{
		"system":  system,
		"history": history,
		"query":   query,
	}
}

// promptDelimiters 是构建提示词时使用的分隔token；小模型偶尔会把它们
// 连同提示词一起回显。
var promptDelimiters = []string{"Instruction:", "Response:", "Script:", "JSON:"}

// stripPromptEcho 去掉输出中回显的提示词分隔token，保留最后一段真实内容。
func stripPromptEcho(text string) string {
	for {
		idx, width := -1, 0
		for _, delim := range promptDelimiters {
			if i := strings.Index(text, delim); i >= 0 && i > idx {
				idx, width = i, len(delim)
			}
		}
		if idx < 0 {
			break
		}
		text = text[idx+width:]
	}
	return strings.TrimSpace(text)
}
