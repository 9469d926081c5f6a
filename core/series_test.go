package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesAccessors(t *testing.T) {
	s := Series[float64]{1, 2, 3, 4}

	assert.Equal(t, 4, s.Length())
	assert.Equal(t, 4.0, s.Last(0))
	assert.Equal(t, 3.0, s.Last(1))
	assert.Equal(t, Series[float64]{3, 4}, s.LastValues(2))
	assert.Equal(t, s, s.LastValues(10))
	assert.Equal(t, []float64{1, 2, 3, 4}, s.Values())
}

func TestSeriesCrosses(t *testing.T) {
	ref := Series[float64]{10, 10}

	assert.True(t, Series[float64]{9, 11}.Crossover(ref))
	assert.False(t, Series[float64]{11, 12}.Crossover(ref))
	assert.True(t, Series[float64]{11, 9}.Crossunder(ref))
	assert.False(t, Series[float64]{9, 8}.Crossunder(ref))
	assert.True(t, Series[float64]{9, 11}.Cross(ref))
	assert.True(t, Series[float64]{11, 9}.Cross(ref))
	assert.False(t, Series[float64]{11, 11}.Cross(ref))
}
