package tools

import (
	"fmt"
	"strings"
	"sync"
)

// ToolFactory creates a tool instance bound to a request's Dependencies.
type ToolFactory func(deps *Dependencies) (Tool, error)

// toolDescriptor pairs a factory with its metadata.
type toolDescriptor struct {
	meta    ToolMeta
	factory ToolFactory
}

// immutableRegistry is the global, read-only tool registry.
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

//nolint:gochecknoglobals // factory pattern requires a global registry
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory to the global registry. Panics if called
// after the registry is sealed.
func Register(name string, factory ToolFactory, meta *ToolMeta) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool %q", name))
	}
	globalRegistry.tools[name] = toolDescriptor{meta: *meta, factory: factory}
}

// Seal prevents further tool registrations. Called automatically when the
// first ToolProvider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// ListTools returns metadata for every registered tool.
func ListTools() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(globalRegistry.tools))
	for _, desc := range globalRegistry.tools {
		result = append(result, desc.meta)
	}
	return result
}

// ToolProvider creates and caches tool instances for one request's
// Dependencies, scoped to a single script id for the tool executor's
// lifetime.
type ToolProvider struct {
	deps     *Dependencies
	tools    map[string]Tool
	allowSet map[string]struct{}
	mu       sync.Mutex
}

// NewProvider creates a new ToolProvider bound to deps, exposing only
// allowedTools. Automatically seals the global registry on first use.
func NewProvider(deps *Dependencies, allowedTools []string) *ToolProvider {
	Seal()

	allowSet := make(map[string]struct{}, len(allowedTools))
	for _, name := range allowedTools {
		allowSet[name] = struct{}{}
	}

	return &ToolProvider{
		deps:     deps,
		tools:    make(map[string]Tool),
		allowSet: allowSet,
	}
}

// Get retrieves a tool instance, creating it lazily if needed.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.allowSet[name]; !ok {
		return nil, fmt.Errorf("tool %q not allowed in this context", name)
	}
	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool %q not registered", name)
	}

	tool, err := desc.factory(p.deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool %q: %w", name, err)
	}

	p.tools[name] = tool
	return tool, nil
}

// Must is like Get but panics on error. Use for tools that must exist.
func (p *ToolProvider) Must(name string) Tool {
	tool, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return tool
}

// List returns metadata for all of this provider's allowed tools.
func (p *ToolProvider) List() []ToolMeta {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolMeta, 0, len(p.allowSet))
	for name := range p.allowSet {
		if desc, ok := globalRegistry.tools[name]; ok {
			result = append(result, desc.meta)
		}
	}
	return result
}

// GenerateToolDocumentation renders markdown documentation for this
// provider's allowed tools.
func (p *ToolProvider) GenerateToolDocumentation() string {
	return GenerateToolDocumentationForTools(p.List())
}

// GenerateToolDocumentationForTools renders markdown documentation for the
// given tool metadata.
func GenerateToolDocumentationForTools(toolMetas []ToolMeta) string {
	if len(toolMetas) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, meta := range toolMetas {
		fmt.Fprintf(&doc, "- **%s** - %s\n", meta.Name, meta.Description)
	}
	return doc.String()
}

// AllToolNames returns the names of every tool the executor can enable.
func AllToolNames() []string {
	return []string{
		ToolGetScene,
		ToolGetScenes,
		ToolGetSceneContext,
		ToolGetScenesContext,
		ToolGetCharacterScenes,
		ToolSearchScript,
		ToolAnalyzePacing,
		ToolGetPlotThreads,
		ToolGetSceneRelationships,
	}
}

//nolint:gochecknoinits // factory pattern requires init() for tool registration
func init() {
	Register(ToolGetScene, func(deps *Dependencies) (Tool, error) {
		return NewGetSceneTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetScene,
		Description: "Fetch one scene by its 0-based position.",
		InputSchema: NewGetSceneTool(nil).Definition().InputSchema,
	})

	Register(ToolGetScenes, func(deps *Dependencies) (Tool, error) {
		return NewGetScenesTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetScenes,
		Description: "Fetch several scenes by their 0-based positions.",
		InputSchema: NewGetScenesTool(nil).Definition().InputSchema,
	})

	Register(ToolGetSceneContext, func(deps *Dependencies) (Tool, error) {
		return NewGetSceneContextTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetSceneContext,
		Description: "Fetch a target scene plus its neighboring scenes.",
		InputSchema: NewGetSceneContextTool(nil).Definition().InputSchema,
	})

	Register(ToolGetScenesContext, func(deps *Dependencies) (Tool, error) {
		return NewGetScenesContextTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetScenesContext,
		Description: "Fetch the union of context windows for several target scenes.",
		InputSchema: NewGetScenesContextTool(nil).Definition().InputSchema,
	})

	Register(ToolGetCharacterScenes, func(deps *Dependencies) (Tool, error) {
		return NewGetCharacterScenesTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetCharacterScenes,
		Description: "List the chronological scenes containing a normalized character name.",
		InputSchema: NewGetCharacterScenesTool(nil).Definition().InputSchema,
	})

	Register(ToolSearchScript, func(deps *Dependencies) (Tool, error) {
		return NewSearchScriptTool(deps), nil
	}, &ToolMeta{
		Name:        ToolSearchScript,
		Description: "Semantically search the script for scenes matching a query.",
		InputSchema: NewSearchScriptTool(nil).Definition().InputSchema,
	})

	Register(ToolAnalyzePacing, func(deps *Dependencies) (Tool, error) {
		return NewAnalyzePacingTool(deps), nil
	}, &ToolMeta{
		Name:        ToolAnalyzePacing,
		Description: "Compute quantitative pacing metrics with no LLM call.",
		InputSchema: NewAnalyzePacingTool(nil).Definition().InputSchema,
	})

	Register(ToolGetPlotThreads, func(deps *Dependencies) (Tool, error) {
		return NewGetPlotThreadsTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetPlotThreads,
		Description: "List plot threads and the scenes each touches.",
		InputSchema: NewGetPlotThreadsTool(nil).Definition().InputSchema,
	})

	Register(ToolGetSceneRelationships, func(deps *Dependencies) (Tool, error) {
		return NewGetSceneRelationshipsTool(deps), nil
	}, &ToolMeta{
		Name:        ToolGetSceneRelationships,
		Description: "List scene relationships with positions translated to user-facing numbers.",
		InputSchema: NewGetSceneRelationshipsTool(nil).Definition().InputSchema,
	})
}
