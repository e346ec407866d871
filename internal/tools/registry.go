// Package tools implements the Tool Runtime: a registry of providers,
// each serving one or more named tools, with typed-schema argument
// validation, opaque per-provider state buckets, and per-conversation
// serialization.
//
// Grounded on internal/agent/tool_registry.go's ToolRegistry (RWMutex map
// plus MaxToolNameLength/MaxToolParamsSize guards) and the sessionLock
// pattern from internal/agent/tool_registry.go's lockSession (refcounted
// per-key mutex map, released and pruned when the last caller is done).
package tools

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/internal/schema"
	"github.com/haasonsaas/agentcore/internal/state"
)

// Tool parameter limits, bounding untrusted input before it reaches a
// provider.
const (
	MaxToolNameLength = 256
	MaxToolParamsSize = 10 << 20
)

type registeredTool struct {
	providerName string
	provider     Provider
	params       []schema.Param
	template     map[string]any
}

// Registry is the Tool Runtime: it owns every registered Provider, the
// typed schema each tool declared at registration, and the persisted
// state buckets those providers read and mutate on every call.
type Registry struct {
	logger *slog.Logger
	store  *state.Store

	mu        sync.RWMutex
	tools     map[string]registeredTool
	providers map[string]Provider

	bucketsMu sync.Mutex
	buckets   state.Buckets

	convLocksMu sync.Mutex
	convLocks   map[string]*refcountMutex

	providerLocksMu sync.Mutex
	providerLocks   map[string]*sync.Mutex

	metrics *observability.Metrics
}

type refcountMutex struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates an empty Registry backed by store. It loads the
// persisted buckets immediately so RegisterProvider can check whether a
// provider's global state already exists before seeding it.
func NewRegistry(store *state.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:        logger.With("component", "tool_registry"),
		store:         store,
		tools:         make(map[string]registeredTool),
		providers:     make(map[string]Provider),
		buckets:       store.Load(),
		convLocks:     make(map[string]*refcountMutex),
		providerLocks: make(map[string]*sync.Mutex),
	}
}

// SetMetrics attaches the Prometheus metrics this Registry reports tool
// call counts to. Optional; a Registry with no metrics attached behaves
// identically, just unobserved.
func (r *Registry) SetMetrics(metrics *observability.Metrics) {
	r.metrics = metrics
}

// RegisterProvider adds every tool a provider declares. It is not safe to
// call concurrently with Call; registration happens once at startup
// before the driver begins serving conversations.
func (r *Registry) RegisterProvider(p Provider) error {
	decl := p.Declare()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range decl.Tools {
		if _, exists := r.tools[t.ID]; exists {
			return newToolError(ErrDuplicateTool, t.ID, "a provider already registered this tool id", nil)
		}
	}

	for _, t := range decl.Tools {
		if err := schema.CompileCheck(t); err != nil {
			return fmt.Errorf("tool %s: %w", t.ID, err)
		}
	}

	name := p.Name()
	r.providers[name] = p
	r.providerLocksMu.Lock()
	r.providerLocks[name] = &sync.Mutex{}
	r.providerLocksMu.Unlock()

	r.bucketsMu.Lock()
	if _, ok := r.buckets.Global[name]; !ok && decl.InitialGlobalState != nil {
		r.buckets.Global[name] = cloneState(decl.InitialGlobalState)
	}
	r.bucketsMu.Unlock()

	for _, t := range decl.Tools {
		r.tools[t.ID] = registeredTool{
			providerName: name,
			provider:     p,
			params:       t.Parameters.Params,
			template:     decl.ConversationTemplate,
		}
	}

	r.logger.Info("registered tool provider", "provider", name, "tool_count", len(decl.Tools))
	return nil
}

// Declarations returns every registered tool's declaration for the LLM
// Driver to wire into completion requests. Providers are kept in a map, so
// the order of the returned declarations across providers is not defined.
func (r *Registry) Declarations() []schema.Declaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.providers))
	out := make([]schema.Declaration, 0, len(r.tools))
	for _, p := range r.providers {
		name := p.Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, p.Declare().Tools...)
	}
	return out
}

// Call validates and executes one tool invocation by id. It serializes
// calls within the same conversation (so a provider never sees two
// concurrent mutations of the same conversation's state bucket) while
// allowing different conversations to run concurrently; access to a
// single provider's shared global state bucket is serialized separately
// since it is visible across conversations.
func (r *Registry) Call(ctx context.Context, conversationID, toolID string, rawArgs []byte) (Result, *ToolError) {
	if len(toolID) > MaxToolNameLength {
		return Result{}, newToolError(ErrInvalidArgs, toolID, "tool name exceeds maximum length", nil)
	}
	if len(rawArgs) > MaxToolParamsSize {
		return Result{}, newToolError(ErrInvalidArgs, toolID, "tool arguments exceed maximum size", nil)
	}

	r.mu.RLock()
	rt, ok := r.tools[toolID]
	r.mu.RUnlock()
	if !ok {
		return Result{}, newToolError(ErrUnknownTool, toolID, "no provider declared this tool", nil)
	}

	args, verr := schema.Validate(bytes.TrimSpace(rawArgs), rt.params)
	if verr != nil {
		return Result{}, newToolError(ErrInvalidArgs, toolID, verr.Error(), verr)
	}

	release := r.lockConversation(conversationID)
	defer release()

	providerLock := r.providerLock(rt.providerName)
	providerLock.Lock()
	defer providerLock.Unlock()

	convState, globalState := r.loadStateFor(rt.providerName, conversationID, rt.template)

	inv := &Invocation{
		ToolID:            toolID,
		ConversationID:    conversationID,
		Args:              args,
		ConversationState: convState,
		GlobalState:       globalState,
	}

	result, toolErr := rt.provider.Invoke(ctx, inv)

	r.storeStateFor(rt.providerName, conversationID, inv.ConversationState, inv.GlobalState)
	if err := r.persist(); err != nil {
		persistErr := newToolError(ErrPersistenceError, toolID, "tool ran but its state could not be saved", err)
		r.logger.Error("failed to persist tool state after invocation", "tool_id", toolID, "error", persistErr)
	}

	if r.metrics != nil {
		outcome := "ok"
		if toolErr != nil {
			outcome = "error"
		}
		r.metrics.ToolCallCounter.WithLabelValues(toolID, outcome).Inc()
	}

	if toolErr != nil {
		return Result{}, toolErr
	}
	return result, nil
}

func (r *Registry) lockConversation(conversationID string) func() {
	r.convLocksMu.Lock()
	l, ok := r.convLocks[conversationID]
	if !ok {
		l = &refcountMutex{}
		r.convLocks[conversationID] = l
	}
	l.refs++
	r.convLocksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.convLocksMu.Lock()
		l.refs--
		if l.refs <= 0 {
			delete(r.convLocks, conversationID)
		}
		r.convLocksMu.Unlock()
	}
}

func (r *Registry) providerLock(providerName string) *sync.Mutex {
	r.providerLocksMu.Lock()
	defer r.providerLocksMu.Unlock()
	l, ok := r.providerLocks[providerName]
	if !ok {
		l = &sync.Mutex{}
		r.providerLocks[providerName] = l
	}
	return l
}

func (r *Registry) loadStateFor(providerName, conversationID string, template map[string]any) (conv, global map[string]any) {
	r.bucketsMu.Lock()
	defer r.bucketsMu.Unlock()

	convBucket, ok := r.buckets.Conversations[conversationID]
	if !ok {
		convBucket = map[string]any{}
		r.buckets.Conversations[conversationID] = convBucket
	}
	providerConvState, ok := convBucket[providerName].(map[string]any)
	if !ok {
		providerConvState = cloneState(template)
		convBucket[providerName] = providerConvState
	}

	providerGlobalState, ok := r.buckets.Global[providerName].(map[string]any)
	if !ok {
		providerGlobalState = map[string]any{}
		r.buckets.Global[providerName] = providerGlobalState
	}

	return providerConvState, providerGlobalState
}

func (r *Registry) storeStateFor(providerName, conversationID string, conv, global map[string]any) {
	r.bucketsMu.Lock()
	defer r.bucketsMu.Unlock()

	if _, ok := r.buckets.Conversations[conversationID]; !ok {
		r.buckets.Conversations[conversationID] = map[string]any{}
	}
	r.buckets.Conversations[conversationID][providerName] = conv
	r.buckets.Global[providerName] = global
}

func (r *Registry) persist() error {
	r.bucketsMu.Lock()
	snapshot := r.buckets
	r.bucketsMu.Unlock()
	return r.store.Save(snapshot)
}

// Reset clears every provider's persisted state, in memory and on disk.
func (r *Registry) Reset() {
	r.bucketsMu.Lock()
	r.buckets = state.Empty()
	r.bucketsMu.Unlock()
	r.store.Reset()
}

func cloneState(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
