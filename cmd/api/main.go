package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/omnimind/omnimind-engine/internal/config"
	"github.com/omnimind/omnimind-engine/internal/content"
	"github.com/omnimind/omnimind-engine/internal/database"
	"github.com/omnimind/omnimind-engine/internal/handler"
	"github.com/omnimind/omnimind-engine/internal/inference"
	"github.com/omnimind/omnimind-engine/internal/memory"
	"github.com/omnimind/omnimind-engine/internal/moderation"
	chatservice "github.com/omnimind/omnimind-engine/internal/service/chat"
	"github.com/omnimind/omnimind-engine/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// 会话回复的令牌预算：未显式设置模型上限时生效，
	// 单次调用自带 maxTokens 的路径不受影响。
	if cfg.AI.MaxTokens == nil {
		cfg.AI.MaxTokens = &cfg.Chat.ReplyMaxTokens
	}

	runtime := inference.New(cfg.AI)
	if runtime.Enabled() {
		log.Println("inference runtime configured, models load on first use")
	} else {
		log.Println("Ark 凭证未配置，生成与向量化将使用降级路径")
	}

	// Persistence: Postgres when configured, otherwise in-process stores.
	var chatStore chatservice.Store
	var memQuerier memory.Querier
	if cfg.Database.Enabled() {
		if err := database.Migrate(cfg.Database.URL); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		pool, err := database.Open(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		defer pool.Close()

		chatStore = postgres.NewChatStore(pool)
		memQuerier = postgres.NewMemoryQuerier(pool)
		log.Println("using Postgres persistence")
	} else {
		chatStore = chatservice.NewMemoryStore()
		memQuerier = memory.NewMemQuerier()
		log.Println("DATABASE_URL 未配置，使用进程内存储（重启即失）")
	}

	memories := memory.New(memQuerier, runtime)

	gate := moderation.NewGate(runtime, moderation.Config{
		LLMEnabled:   cfg.Moderation.LLMEnabled,
		ExtraBlocked: cfg.Moderation.ExtraBlocked,
	})

	chatSvc := chatservice.NewService(chatStore, memories, gate, runtime, chatservice.Options{
		HistoryLimit:    cfg.Chat.HistoryLimit,
		MemoryLimit:     cfg.Chat.MemoryLimit,
		MemoryThreshold: cfg.Chat.MemoryThreshold,
	})

	meditation := content.NewMeditation(runtime, memories)
	study := content.NewStudy(runtime, memories)

	router := handler.NewRouter(chatSvc, gate, meditation, study)

	startServer(ctx, cfg.Server, router)

	// Let in-flight background memory writes finish before exit.
	chatSvc.Wait()
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("OmniMind engine listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
