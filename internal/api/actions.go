package api

import (
	"context"
	"sync"
	"time"
)

const (
	ActionScheduleReview = "schedule_review"
	ActionFlagCompany    = "flag_company"
	ActionExportReport   = "export_report"
)

// ActionRequest é o corpo de POST /api/executive/actions.
type ActionRequest struct {
	Type   string `json:"type" validate:"required,oneof=schedule_review flag_company export_report"`
	Target string `json:"target" validate:"required,max=200"`
	Note   string `json:"note" validate:"max=500"`
}

type Action struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Target    string    `json:"target"`
	Note      string    `json:"note,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActionSink recebe as ações aceitas. Quem executa de fato fica fora daqui.
type ActionSink interface {
	Enqueue(ctx context.Context, a Action) error
}

// MemoryActions guarda as últimas ações enfileiradas.
type MemoryActions struct {
	mu      sync.Mutex
	max     int
	actions []Action
}

func NewMemoryActions(max int) *MemoryActions {
	if max <= 0 {
		max = 1000
	}
	return &MemoryActions{max: max}
}

func (m *MemoryActions) Enqueue(_ context.Context, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.actions) == m.max {
		copy(m.actions, m.actions[1:])
		m.actions = m.actions[:m.max-1]
	}
	m.actions = append(m.actions, a)
	return nil
}

// List retorna uma cópia, da mais antiga para a mais nova.
func (m *MemoryActions) List() []Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Action(nil), m.actions...)
}
