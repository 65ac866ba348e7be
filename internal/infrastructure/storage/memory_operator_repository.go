package storage

import (
	"context"
	"sort"
	"sync"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// MemoryOperatorRepository in-memory хранилище операторов
type MemoryOperatorRepository struct {
	mu        sync.RWMutex
	operators map[int64]*entity.Operator
}

// NewMemoryOperatorRepository создаёт новое in-memory хранилище
func NewMemoryOperatorRepository() *MemoryOperatorRepository {
	return &MemoryOperatorRepository{
		operators: make(map[int64]*entity.Operator),
	}
}

// Get возвращает оператора по ID, создаёт нового если не найден
func (r *MemoryOperatorRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op, exists := r.operators[userID]; exists {
		cp := *op
		return &cp, nil
	}

	op := entity.NewOperator(userID, chatID)
	r.operators[userID] = op

	cp := *op
	return &cp, nil
}

// Save сохраняет оператора
func (r *MemoryOperatorRepository) Save(ctx context.Context, op *entity.Operator) error {
	r.mu.Lock()
	cp := *op
	r.operators[op.ID] = &cp
	r.mu.Unlock()

	return nil
}

// Subscribers возвращает подписанных операторов, отсортированных по ID
func (r *MemoryOperatorRepository) Subscribers(ctx context.Context) ([]entity.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entity.Operator, 0, len(r.operators))
	for _, op := range r.operators {
		if op.Subscribed {
			out = append(out, *op)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Проверка реализации интерфейса
var _ port.OperatorRepository = (*MemoryOperatorRepository)(nil)
