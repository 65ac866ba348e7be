package app

import (
	"fmt"
	"math"
	"strings"

	"road-inspector/internal/domain/entity"
)

const (
	// DefaultSeverityWeight вес метки, которой нет в таблице
	DefaultSeverityWeight = 1
	// PerfectRating оценка участка без дефектов
	PerfectRating = 100.0
)

// SeverityTable таблица весов дефектов. Поиск не зависит от регистра.
type SeverityTable struct {
	weights map[string]int
	max     int
}

// NewSeverityTable строит таблицу из отображения метка -> вес.
// Веса должны быть положительными.
func NewSeverityTable(weights map[string]int) (*SeverityTable, error) {
	t := &SeverityTable{
		weights: make(map[string]int, len(weights)),
		max:     DefaultSeverityWeight,
	}
	for label, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: severity weight for %q must be positive, got %d", entity.ErrValidation, label, w)
		}
		key := normalizeLabel(label)
		// метки, совпадающие без учёта регистра, получают больший вес
		if prev, ok := t.weights[key]; !ok || w > prev {
			t.weights[key] = w
		}
		if w > t.max {
			t.max = w
		}
	}
	return t, nil
}

// Weight возвращает вес метки или DefaultSeverityWeight.
func (t *SeverityTable) Weight(label string) int {
	if w, ok := t.weights[normalizeLabel(label)]; ok {
		return w
	}
	return DefaultSeverityWeight
}

// MaxWeight наибольший вес таблицы, не меньше DefaultSeverityWeight
func (t *SeverityTable) MaxWeight() int {
	return t.max
}

// Len количество меток в таблице
func (t *SeverityTable) Len() int {
	return len(t.weights)
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// RatingCalculator считает оценку состояния участка по списку дефектов.
type RatingCalculator struct {
	table *SeverityTable
}

func NewRatingCalculator(table *SeverityTable) *RatingCalculator {
	return &RatingCalculator{table: table}
}

// Rate возвращает оценку в диапазоне [0, 100] с точностью до двух знаков.
// Каждая запись учитывается отдельно, повторы одного дефекта на соседних кадрах не схлопываются.
func (c *RatingCalculator) Rate(defects []entity.DefectRecord) float64 {
	if len(defects) == 0 {
		return PerfectRating
	}

	total := 0
	for _, d := range defects {
		total += c.table.Weight(d.DefectType)
	}
	maxPossible := len(defects) * c.table.MaxWeight()

	rating := 100 - float64(total)/float64(maxPossible)*100
	return clampRating(round2(rating))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampRating(v float64) float64 {
	return math.Max(0, math.Min(PerfectRating, v))
}
