package port

import (
	"context"

	"road-inspector/internal/domain/entity"
)

// OperatorRepository интерфейс хранилища операторов
type OperatorRepository interface {
	// Get возвращает оператора по ID, создаёт нового если не найден
	Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error)

	// Save сохраняет оператора
	Save(ctx context.Context, op *entity.Operator) error

	// Subscribers возвращает операторов с включённой рассылкой
	Subscribers(ctx context.Context) ([]entity.Operator, error)
}
