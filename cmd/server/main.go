// Command server is the screenplay conversation core's HTTP entry point. It
// wires the Router, Retrieval Service, Context Builder, Conversation
// Service, Agent Loop, Tool Provider, Evidence Builder, and Telemetry
// together behind one /v1/messages endpoint, streaming events back to the
// client as newline-delimited JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"screenplay-core/pkg/agent/internal/llmimpl/anthropic"
	"screenplay-core/pkg/agent/llm"
	"screenplay-core/pkg/agentloop"
	"screenplay-core/pkg/config"
	"screenplay-core/pkg/contextbuilder"
	"screenplay-core/pkg/conversation"
	"screenplay-core/pkg/embeddings"
	"screenplay-core/pkg/jobs"
	"screenplay-core/pkg/logx"
	"screenplay-core/pkg/metrics"
	"screenplay-core/pkg/persistence"
	"screenplay-core/pkg/retrieval"
	"screenplay-core/pkg/router"
	"screenplay-core/pkg/screenplay"
	"screenplay-core/pkg/tools"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (optional; built-in defaults apply otherwise)")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN")
	redisAddr := flag.String("redis", os.Getenv("REDIS_ADDR"), "Redis address for the background job queue")
	qdrantHost := flag.String("qdrant-host", os.Getenv("QDRANT_HOST"), "Qdrant host (embeddings retrieval disabled if empty)")
	flag.Parse()

	logger := logx.NewLogger("server")

	if err := config.Load(*configPath); err != nil {
		logger.Error("config load failed: %v", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if *dsn == "" {
		logger.Error("no Postgres DSN provided (set -dsn or DATABASE_URL)")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := persistence.NewPool(ctx, persistence.DefaultConfig(*dsn))
	if err != nil {
		logger.Error("db connect failed: %v", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := persistence.InitSchema(ctx, pool); err != nil {
		logger.Error("schema init failed: %v", err)
		os.Exit(1)
	}

	scriptStore := persistence.NewScriptStore(pool)
	convoStore := persistence.NewConversationStore(pool)

	// jobQueue and vectorStore are kept as interface variables, left nil
	// (not a typed-nil pointer) when disabled, so New's nil checks on
	// these collaborators behave correctly.
	var jobQueue conversation.JobQueue
	if *redisAddr != "" {
		q, err := jobs.New(*redisAddr)
		if err != nil {
			logger.Warn("job queue disabled: %v", err)
		} else {
			defer q.Close()
			jobQueue = q
		}
	}

	var embedder embeddings.Client
	if cfg.OpenAIAPIKey != "" {
		embedder = embeddings.New(cfg.OpenAIAPIKey, "")
	}

	var vectorStore screenplay.SceneVectorStore
	if *qdrantHost != "" {
		qs, err := retrieval.NewQdrantStore(ctx, retrieval.VectorStoreConfig{Host: *qdrantHost, Collection: "scenes"})
		if err != nil {
			logger.Warn("vector store disabled: %v", err)
		} else {
			vectorStore = qs
		}
	}

	retrievalSvc := retrieval.New(scriptStore, vectorStore, embedder, logger)
	contextBuilder := contextbuilder.New(scriptStore)
	conversationSvc := conversation.New(convoStore, jobQueue, logger)
	telemetry := metrics.New()

	var llmClient llm.LLMClient
	if cfg.AnthropicAPIKey != "" {
		llmClient = anthropic.NewClaudeClient(cfg.AnthropicAPIKey)
	}
	classifier := router.New(llmClient, logger)

	srv := &server{
		cfg:            cfg,
		logger:         logger,
		scriptStore:    scriptStore,
		retrieval:      retrievalSvc,
		contextBuilder: contextBuilder,
		conversation:   conversationSvc,
		classifier:     classifier,
		llmClient:      llmClient,
		telemetry:      telemetry,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messages", srv.handleMessages)
	mux.HandleFunc("/v1/conversations/usage", srv.handleUsage)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	httpServer := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// server holds the wired collaborators the HTTP handler dispatches to.
type server struct {
	cfg            config.Config
	logger         *logx.Logger
	scriptStore    *persistence.ScriptStore
	retrieval      *retrieval.Service
	contextBuilder *contextbuilder.Builder
	conversation   *conversation.Service
	classifier     *router.Classifier
	llmClient      llm.LLMClient
	telemetry      *metrics.Telemetry
}

// messageRequest is the §6 request contract.
type messageRequest struct {
	ScriptID             string `json:"script_id"`
	UserID               string `json:"user_id"`
	ConversationID       string `json:"conversation_id"`
	Message              string `json:"message"`
	CurrentScenePosition *int   `json:"current_scene_position,omitempty"`
	ToolsEnabled         bool   `json:"tools_enabled"`
	TopicModeOverride    string `json:"topic_mode_override,omitempty"`
	BudgetTier           string `json:"budget_tier,omitempty"`
}

func (s *server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	if req.ScriptID == "" || req.Message == "" {
		http.Error(w, "script_id and message are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	conv, err := s.conversation.GetOrCreate(ctx, req.ConversationID, req.UserID, req.ScriptID)
	if err != nil {
		http.Error(w, fmt.Sprintf("conversation: %v", err), http.StatusInternalServerError)
		return
	}

	var lastAssistantScenes []int
	var workingSetView *contextbuilder.WorkingSetView
	if ws, err := s.conversationWorkingSet(ctx, conv.ID); err == nil {
		workingSetView = ws.view
		lastAssistantScenes = ws.scenesOneBased
	}

	classification, fallback := s.classifier.ClassifyObserved(ctx, router.Request{
		Message:               req.Message,
		TopicModeOverride:     router.TopicModeOverride(req.TopicModeOverride),
		HasActiveConversation: req.ConversationID != "",
		LastAssistantScenes:   lastAssistantScenes,
		CurrentSceneNumber:    derefOr(req.CurrentScenePosition, -1) + 1,
	})
	s.telemetry.RecordClassification(fallback != router.FallbackNone, string(fallback))

	retrieved, err := s.retrieval.RetrieveForIntent(ctx, req.ScriptID, req.Message, classification.Intent, req.CurrentScenePosition)
	if err != nil {
		s.logger.Warn("retrieval failed, continuing with no scene context: %v", err)
	}

	history, err := s.conversation.BuildHistoryBlock(ctx, conv.ID, contextbuilder.BudgetFor(contextbuilder.Tier(req.BudgetTier)))
	if err != nil {
		s.logger.Warn("history block failed, continuing without it: %v", err)
	}

	built, err := s.contextBuilder.Build(ctx, contextbuilder.Request{
		ScriptID:             req.ScriptID,
		Message:              req.Message,
		Classification:       classification,
		Tier:                 contextbuilder.Tier(req.BudgetTier),
		ToolsEnabled:         req.ToolsEnabled,
		AvailableTools:       tools.AllToolNames(),
		CurrentScenePosition: req.CurrentScenePosition,
		RetrievedScenes:      retrieved,
		ConversationHistory:  history,
		WorkingSet:           workingSetView,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("context build: %v", err), http.StatusInternalServerError)
		return
	}

	var executor agentloop.ToolExecutor
	if req.ToolsEnabled {
		executor = tools.NewProvider(&tools.Dependencies{
			Store:    s.scriptStore,
			Searcher: s.retrieval,
			ScriptID: req.ScriptID,
		}, tools.AllToolNames())
	}

	loop := agentloop.New(s.llmClient, executor, s.logger)
	events := loop.Run(ctx, agentloop.Request{
		Question:       req.Message,
		Intent:         string(classification.Intent),
		ConversationID: conv.ID,
		Messages:       built.ToMessages(),
		MaxIterations:  s.cfg.AgentLoop.MaxIterations,
		ToolsEnabled:   req.ToolsEnabled,
	})

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	var finalText string
	var usage llm.Usage
	for ev := range events {
		if ev.Kind == agentloop.EventText {
			finalText += ev.Text
		}
		if ev.Kind == agentloop.EventComplete {
			usage = ev.Usage
		}
		encoded, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		w.Write(encoded) //nolint:errcheck // best-effort streaming write
		w.Write([]byte("\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}

	model := s.llmModel()
	cost := s.telemetry.RecordTokenUsage(model, string(classification.Intent), usage)
	if err := s.conversation.RecordExchange(ctx, conv.ID, req.Message, finalText, usage, cost, model.Name); err != nil {
		s.logger.Warn("failed to persist exchange: %v", err)
	}
	if err := s.conversation.MaybeSummarize(ctx, conv.ID); err != nil {
		s.logger.Warn("failed to schedule summarization: %v", err)
	}

	characterNames := s.characterRoster(ctx, req.ScriptID)
	threadNames := s.plotThreadRoster(ctx, req.ScriptID)
	if _, err := s.conversation.UpdateWorkingSet(ctx, conv.ID, string(classification.Intent), finalText, characterNames, threadNames); err != nil {
		s.logger.Warn("failed to update working set: %v", err)
	}
}

// handleUsage reports a conversation's aggregated token/cost accounting,
// for client-side billing dashboards.
func (s *server) handleUsage(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}
	usage, err := s.conversation.UsageSummary(r.Context(), conversationID)
	if err != nil {
		http.Error(w, fmt.Sprintf("usage: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(usage)
}

func (s *server) characterRoster(ctx context.Context, scriptID string) []string {
	sheets, err := s.scriptStore.ListCharacterSheets(ctx, scriptID)
	if err != nil {
		return nil
	}
	names := make([]string, len(sheets))
	for i, sheet := range sheets {
		names[i] = sheet.Name
	}
	return names
}

func (s *server) plotThreadRoster(ctx context.Context, scriptID string) []string {
	threads, err := s.scriptStore.ListPlotThreads(ctx, scriptID, "")
	if err != nil {
		return nil
	}
	names := make([]string, len(threads))
	for i, thread := range threads {
		names[i] = thread.Name
	}
	return names
}

// workingSet bundles the Context Builder's view of the stored working set
// with its scene positions converted to the 1-based numbers router.Request
// expects for LastAssistantScenes.
type workingSet struct {
	view           *contextbuilder.WorkingSetView
	scenesOneBased []int
}

func (s *server) conversationWorkingSet(ctx context.Context, conversationID string) (*workingSet, error) {
	ws, err := s.conversation.WorkingSet(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	scenes := make([]int, len(ws.ActiveScenePositions))
	for i, pos := range ws.ActiveScenePositions {
		scenes[i] = pos + 1
	}
	return &workingSet{
		view: &contextbuilder.WorkingSetView{
			LastAssistantCommitment: ws.LastAssistantCommitment,
			ActiveCharacterNames:    ws.ActiveCharacterNames,
		},
		scenesOneBased: scenes,
	}, nil
}

// llmModel returns the config.Model the active client is using, for cost
// computation, falling back to the process default when no client is
// configured (e.g. a heuristic-only, tool-free deployment).
func (s *server) llmModel() config.Model {
	if s.llmClient == nil {
		return config.ModelDefaults[config.ModelClaudeSonnetLatest]
	}
	return s.llmClient.GetDefaultConfig()
}

func derefOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return *p
}
