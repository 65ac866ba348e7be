package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"road-inspector/internal/domain/entity"
)

func defects(labels ...string) []entity.DefectRecord {
	out := make([]entity.DefectRecord, 0, len(labels))
	for _, l := range labels {
		out = append(out, entity.DefectRecord{RoadID: "R1", DefectType: l, BBox: entity.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}})
	}
	return out
}

func newCalculator(t *testing.T, weights map[string]int) *RatingCalculator {
	t.Helper()
	table, err := NewSeverityTable(weights)
	require.NoError(t, err)
	return NewRatingCalculator(table)
}

func TestRate_NoDefectsIsPerfect(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5})
	require.Equal(t, 100.0, calc.Rate(nil))
	require.Equal(t, 100.0, calc.Rate([]entity.DefectRecord{}))
}

func TestRate_HeaviestDefectGivesZero(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5, "stairstep_crack": 5, "-": 1})
	require.Equal(t, 0.0, calc.Rate(defects("crack")))
}

func TestRate_MixedWeights(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5, "rebar": 2})
	// 5 + 1 (неизвестная метка) из 2*5
	require.Equal(t, 40.0, calc.Rate(defects("crack", "pothole")))
}

func TestRate_CaseInsensitive(t *testing.T) {
	calc := newCalculator(t, map[string]int{"Drobi Vision Crack": 4, "crack": 5})
	require.Equal(t, calc.Rate(defects("drobi vision crack")), calc.Rate(defects("DROBI VISION CRACK")))
	require.Equal(t, 20.0, calc.Rate(defects("Drobi Vision Crack")))
	require.Equal(t, 0.0, calc.Rate(defects("CRACK")))
}

func TestRate_UnknownLabelsUseDefaultWeight(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5})
	require.Equal(t, 80.0, calc.Rate(defects("unseen", "other")))
}

func TestRate_RoundsToTwoDecimals(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5, "rebar": 2})
	// (5+2+1)/(3*5) = 0.5333.. -> 46.67
	require.Equal(t, 46.67, calc.Rate(defects("crack", "rebar", "x")))
}

func TestRate_BoundsAndDeterminism(t *testing.T) {
	calc := newCalculator(t, map[string]int{"a": 1, "b": 3, "c": 7, "d": 2})
	labels := []string{"a", "b", "c", "d", "unknown", "C", "B"}
	for n := 1; n <= len(labels); n++ {
		in := defects(labels[:n]...)
		r := calc.Rate(in)
		require.GreaterOrEqual(t, r, 0.0)
		require.LessOrEqual(t, r, 100.0)
		require.Equal(t, r, calc.Rate(in))
	}
}

func TestRate_OrderIndependent(t *testing.T) {
	calc := newCalculator(t, map[string]int{"crack": 5, "rebar": 2})
	require.Equal(t, calc.Rate(defects("crack", "rebar", "x")), calc.Rate(defects("x", "crack", "rebar")))
}

func TestRate_EmptyTable(t *testing.T) {
	calc := newCalculator(t, nil)
	require.Equal(t, 0.0, calc.Rate(defects("anything")))
}

func TestNewSeverityTable_RejectsNonPositive(t *testing.T) {
	_, err := NewSeverityTable(map[string]int{"crack": 0})
	require.ErrorIs(t, err, entity.ErrValidation)
}

func TestSeverityTable_Lookup(t *testing.T) {
	table, err := NewSeverityTable(map[string]int{" Crack ": 5, "crack": 3})
	require.NoError(t, err)
	require.Equal(t, 5, table.Weight("crack"))
	require.Equal(t, 1, table.Weight("pothole"))
	require.Equal(t, 5, table.MaxWeight())
	require.Equal(t, 1, table.Len())
}
