package entity

// Operator оператор, который получает отчёты в Telegram
type Operator struct {
	ID         int64 // Telegram User ID
	ChatID     int64 // Telegram Chat ID
	Subscribed bool  // получать уведомления о новых отчётах
}

// NewOperator создаёт оператора без подписки
func NewOperator(userID, chatID int64) *Operator {
	return &Operator{
		ID:     userID,
		ChatID: chatID,
	}
}

// SetSubscribed включает или выключает рассылку отчётов
func (o *Operator) SetSubscribed(v bool) {
	o.Subscribed = v
}
