package design

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarcoPoloResearchLab/storefront/backend/internal/catalog"
)

var (
	// ErrEditorNotFound indicates the editor does not exist or belongs to another browser session.
	ErrEditorNotFound  = errors.New("design: editor not found")
	errMissingOwnerKey = errors.New("design: owner key required")
)

// Editor couples one store with its controller and serializes access to both.
type Editor struct {
	id        string
	ownerKey  string
	tenantID  string
	createdAt time.Time
	clock     func() time.Time

	mu          sync.Mutex
	store       *Store
	controller  *Controller
	lastTouched time.Time

	committing atomic.Bool
}

// ID returns the editor identifier.
func (e *Editor) ID() string {
	return e.id
}

// TenantID returns the tenant the editor prices against.
func (e *Editor) TenantID() string {
	return e.tenantID
}

// Do runs fn with exclusive access to the store and controller.
func (e *Editor) Do(fn func(store *Store, controller *Controller) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastTouched = e.clock()
	return fn(e.store, e.controller)
}

// Touch marks the editor as in use without changing it.
func (e *Editor) Touch() {
	e.mu.Lock()
	e.lastTouched = e.clock()
	e.mu.Unlock()
}

// TryBeginCommit claims the add-to-cart slot; false means a commit is already in flight.
func (e *Editor) TryBeginCommit() bool {
	return e.committing.CompareAndSwap(false, true)
}

// EndCommit releases the add-to-cart slot.
func (e *Editor) EndCommit() {
	e.committing.Store(false)
}

// Committing reports whether an add-to-cart is in flight.
func (e *Editor) Committing() bool {
	return e.committing.Load()
}

// View is a read-only projection of the editor for clients.
type View struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	Design       Design           `json:"design"`
	Pricing      Pricing          `json:"pricing"`
	Valid        bool             `json:"is_valid"`
	Interaction  InteractionState `json:"interaction"`
	ClickToAdd   bool             `json:"click_to_add"`
	Pending      *PendingText     `json:"pending_text,omitempty"`
	Scale        Scale            `json:"scale"`
	Rendered     Size             `json:"rendered"`
	Version      int64            `json:"version"`
	AddingToCart bool             `json:"is_adding_to_cart"`
}

// View captures the current state.
func (e *Editor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return View{
		ID:           e.id,
		TenantID:     e.tenantID,
		Design:       e.store.Snapshot(),
		Pricing:      e.store.Pricing(),
		Valid:        e.store.IsValid(),
		Interaction:  e.store.Interaction(),
		ClickToAdd:   e.controller.ClickToAdd(),
		Pending:      e.controller.Pending(),
		Scale:        e.store.Transform().Scale(),
		Rendered:     e.store.Transform().Rendered(),
		Version:      e.store.Version(),
		AddingToCart: e.committing.Load(),
	}
}

// CommitSnapshot is the frozen state handed to the add-to-cart pipeline.
type CommitSnapshot struct {
	EditorID string
	TenantID string
	Valid    bool
	Pricing  Pricing
	Render   RenderState
}

// CommitSnapshot freezes the design, pricing and render inputs.
func (e *Editor) CommitSnapshot() CommitSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return CommitSnapshot{
		EditorID: e.id,
		TenantID: e.tenantID,
		Valid:    e.store.IsValid(),
		Pricing:  e.store.Pricing(),
		Render:   e.store.RenderState(),
	}
}

// RegistryConfig configures the in-memory editor registry.
type RegistryConfig struct {
	IDProvider IDProvider
	Clock      func() time.Time
	Canvas     Size
}

// Registry tracks live editors. Editors are never persisted; they are discarded on
// removal or when idle too long.
type Registry struct {
	mu      sync.RWMutex
	editors map[string]*Editor
	ids     IDProvider
	clock   func() time.Time
	canvas  Size
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	ids := cfg.IDProvider
	if ids == nil {
		ids = NewUUIDProvider()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		editors: make(map[string]*Editor),
		ids:     ids,
		clock:   clock,
		canvas:  cfg.Canvas,
	}
}

// Create starts an editor once the base product selection is complete.
func (r *Registry) Create(ownerKey string, entry catalog.Catalog, base BaseProduct) (*Editor, error) {
	if ownerKey == "" {
		return nil, errMissingOwnerKey
	}
	store, err := NewStore(StoreConfig{Catalog: entry, Canvas: r.canvas, IDProvider: r.ids})
	if err != nil {
		return nil, err
	}
	if err := store.UpdateBaseProduct(base.Type, base.Size, base.Color); err != nil {
		return nil, err
	}
	if !store.IsValid() {
		return nil, fmt.Errorf("%w: type, size and color are required", ErrInvalidBaseProduct)
	}
	id, err := r.ids.NewID()
	if err != nil {
		return nil, err
	}

	controller := NewController(store)
	controller.Attach()
	now := r.clock()
	editor := &Editor{
		id:          id,
		ownerKey:    ownerKey,
		tenantID:    entry.TenantID,
		createdAt:   now,
		clock:       r.clock,
		store:       store,
		controller:  controller,
		lastTouched: now,
	}

	r.mu.Lock()
	r.editors[id] = editor
	r.mu.Unlock()
	return editor, nil
}

// Get returns the editor owned by ownerKey.
func (r *Registry) Get(ownerKey, id string) (*Editor, error) {
	r.mu.RLock()
	editor, ok := r.editors[id]
	r.mu.RUnlock()
	if !ok || editor.ownerKey != ownerKey {
		return nil, ErrEditorNotFound
	}
	return editor, nil
}

// Remove detaches and discards an editor.
func (r *Registry) Remove(ownerKey, id string) error {
	r.mu.Lock()
	editor, ok := r.editors[id]
	if !ok || editor.ownerKey != ownerKey {
		r.mu.Unlock()
		return ErrEditorNotFound
	}
	delete(r.editors, id)
	r.mu.Unlock()

	_ = editor.Do(func(_ *Store, controller *Controller) error {
		controller.Detach()
		return nil
	})
	return nil
}

// Evicted identifies an editor discarded for inactivity and its final version.
type Evicted struct {
	ID      string
	Version int64
}

// EvictIdle discards editors untouched for longer than maxIdle, skipping in-flight commits.
func (r *Registry) EvictIdle(maxIdle time.Duration) []Evicted {
	cutoff := r.clock().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []Evicted
	for id, editor := range r.editors {
		if editor.Committing() {
			continue
		}
		editor.mu.Lock()
		idle := editor.lastTouched.Before(cutoff)
		if idle {
			editor.controller.Detach()
			evicted = append(evicted, Evicted{ID: id, Version: editor.store.Version()})
		}
		editor.mu.Unlock()
		if idle {
			delete(r.editors, id)
		}
	}
	return evicted
}

// Len returns the number of live editors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.editors)
}
