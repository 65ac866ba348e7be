package app

import (
	"context"

	"road-inspector/internal/domain/entity"
	"road-inspector/internal/domain/port"
)

// OperatorService управляет подпиской операторов на готовые отчёты.
type OperatorService struct {
	repo port.OperatorRepository
}

func NewOperatorService(repo port.OperatorRepository) *OperatorService {
	return &OperatorService{repo: repo}
}

func (s *OperatorService) Get(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *OperatorService) SetSubscribed(ctx context.Context, userID, chatID int64, subscribed bool) (*entity.Operator, error) {
	op, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	op.ChatID = chatID
	op.SetSubscribed(subscribed)
	if err := s.repo.Save(ctx, op); err != nil {
		return nil, err
	}

	return op, nil
}

func (s *OperatorService) Subscribe(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.SetSubscribed(ctx, userID, chatID, true)
}

func (s *OperatorService) Unsubscribe(ctx context.Context, userID, chatID int64) (*entity.Operator, error) {
	return s.SetSubscribed(ctx, userID, chatID, false)
}

func (s *OperatorService) Subscribers(ctx context.Context) ([]entity.Operator, error) {
	return s.repo.Subscribers(ctx)
}
