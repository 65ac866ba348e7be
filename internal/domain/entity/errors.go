package entity

import "errors"

// Виды ошибок. Адаптеры оборачивают свои ошибки в один из них через %w,
// HTTP-слой выбирает код ответа по errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrDecode     = errors.New("decode failure")
	ErrStorage    = errors.New("storage failure")
	ErrInference  = errors.New("inference failure")
	ErrConflict   = errors.New("already exists")
)
