// Package conversation implements the Conversation Manager: the map of
// live conversations, per-conversation serialization, and the glue that
// routes an inbound prompt through the LLM Driver to an outbound response.
//
// Grounded on internal/sessions/memory.go's MemoryStore (RWMutex'd map,
// GetOrCreate, clone-before-return) combined with
// internal/agent/runtime.go's context-key plumbing
// (WithSession/SessionFromContext, renamed WithConversation/
// ConversationFromContext here).
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/containers"
	"github.com/haasonsaas/agentcore/internal/llm"
	"github.com/haasonsaas/agentcore/internal/tools"
	"github.com/haasonsaas/agentcore/pkg/models"
)

type conversationContextKey struct{}

// WithConversation stores conv in ctx.
func WithConversation(ctx context.Context, conv *models.Conversation) context.Context {
	if conv == nil {
		return ctx
	}
	return context.WithValue(ctx, conversationContextKey{}, conv)
}

// ConversationFromContext retrieves the conversation stored by
// WithConversation, or nil if none is present.
func ConversationFromContext(ctx context.Context) *models.Conversation {
	conv, _ := ctx.Value(conversationContextKey{}).(*models.Conversation)
	return conv
}

// entry pairs one conversation's state with the mutex that serializes all
// operations on it: per-conversation serial, across-conversation parallel.
type entry struct {
	mu   sync.Mutex
	conv *models.Conversation
}

// Manager owns every live conversation, dispatches prompts to the LLM
// Driver, and publishes responses. It is constructed with pointers to the
// other four components rather than reaching for package-level state.
type Manager struct {
	driver     *llm.Driver
	containers *containers.Manager
	registry   *tools.Registry
	cfg        config.Config
	logger     *slog.Logger

	mu          sync.Mutex
	byID        map[string]*entry
}

// New builds a Manager wired to the other four components.
func New(driver *llm.Driver, containerMgr *containers.Manager, registry *tools.Registry, cfg config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		driver:     driver,
		containers: containerMgr,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.With("component", "conversation_manager"),
		byID:       make(map[string]*entry),
	}
}

func (m *Manager) entryFor(conversationID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byID[conversationID]
	if !ok {
		e = &entry{conv: &models.Conversation{
			ID:         conversationID,
			WorkingDir: m.cfg.WorkingDirFor(conversationID),
			CreatedAt:  time.Now(),
		}}
		m.byID[conversationID] = e
	}
	return e
}

// OnPrompt locates or creates the conversation, acquires its lock, runs
// the Driver's tool loop, releases, and returns the final assistant text
// for the caller to publish on the prompt channel alongside
// conversationID.
func (m *Manager) OnPrompt(ctx context.Context, conversationID, promptText string) (string, error) {
	e := m.entryFor(conversationID)

	e.mu.Lock()
	defer e.mu.Unlock()

	text, trace, err := m.driver.RunTurn(ctx, e.conv, m.cfg.LLM.PrimaryModel, "", conversationID, promptText)
	if err != nil {
		m.logger.Error("turn failed", "conversation_id", conversationID, "error", err, "iterations", trace.Iterations)
		return "", fmt.Errorf("conversation %s: %w", conversationID, err)
	}
	m.logger.Info("turn completed", "conversation_id", conversationID, "iterations", trace.Iterations, "elapsed", trace.Elapsed)
	return text, nil
}

// Reset clears conversationID's history. Per-conversation tool state is
// retained unless an operator invokes WipeAll.
func (m *Manager) Reset(conversationID string) {
	e := m.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conv.History = nil
}

// WipeAll clears the conversation map, resets the state store, and
// instructs the Container Manager to destroy every container.
func (m *Manager) WipeAll(ctx context.Context) {
	m.mu.Lock()
	m.byID = make(map[string]*entry)
	m.mu.Unlock()

	m.registry.Reset()
	m.containers.DestroyAll(ctx)
}
