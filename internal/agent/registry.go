// ABOUTME: Registry of named agents, enforcing name uniqueness.
// ABOUTME: Creates conversation cores bound to the configured backend and system prompt.

package agent

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/agoradev/agora/internal/model"
)

// DefaultSystemPrompt seeds every agent transcript unless the registry is
// configured otherwise.
const DefaultSystemPrompt = "You are a helpful AI assistant. You remember the conversation context " +
	"and talk with other AI assistants and with the developer building an application around you."

// nameClause is appended to the system prompt so the agent knows its own name.
const nameClause = " For convenience you have been given the name %q. Respond when addressed by that name."

// Registry creates and looks up agents by name. All operations are safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent

	backend      model.Backend
	systemPrompt string
	logger       *slog.Logger
}

// NewRegistry creates a registry whose agents use the given backend and
// system prompt. An empty prompt falls back to DefaultSystemPrompt; a nil
// logger falls back to slog.Default.
func NewRegistry(backend model.Backend, systemPrompt string, logger *slog.Logger) *Registry {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		agents:       make(map[string]*Agent),
		backend:      backend,
		systemPrompt: systemPrompt,
		logger:       logger.With("component", "agent-registry"),
	}
}

// Create instantiates an agent under the given name. Returns false without
// side effects when the name is already taken, so callers can retry safely.
func (r *Registry) Create(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; exists {
		return false
	}

	r.agents[name] = New(name, r.systemPrompt+fmt.Sprintf(nameClause, name), r.backend)
	r.logger.Info("agent created", "name", name, "total_agents", len(r.agents))
	return true
}

// Get returns the agent with the given name, if any.
func (r *Registry) Get(name string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Remove deletes the named agent. Returns true iff an entry existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.agents[name]; !exists {
		return false
	}
	delete(r.agents, name)
	r.logger.Info("agent removed", "name", name, "total_agents", len(r.agents))
	return true
}

// Names returns the registered agent names. Order is not specified.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}
