package ranker

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aman-cerp/retrieval-core/internal/model"
)

func TestDefaultWeightTable_EverySumIsOne(t *testing.T) {
	for intent, w := range defaultWeightTable {
		assert.InDelta(t, 1.0, w.Sum(), 1e-9, "intent %s weights must sum to 1.0", intent)
	}
}

func TestDefaultWeightTable_CoversAllSixIntents(t *testing.T) {
	intents := []model.Intent{
		model.IntentImplement, model.IntentDebug, model.IntentUnderstand,
		model.IntentRefactor, model.IntentTest, model.IntentDocument,
	}
	for _, i := range intents {
		_, ok := defaultWeightTable[i]
		assert.True(t, ok, "missing weight row for %s", i)
	}
}

func TestWeightFor_UnknownIntentDefaultsToUnderstand(t *testing.T) {
	w := WeightFor(model.Intent("NOT_REAL"))
	assert.Equal(t, defaultWeightTable[model.IntentUnderstand], w)
}

func TestWeightsFromSlice_RoundTripsAsSlice(t *testing.T) {
	original := defaultWeightTable[model.IntentDebug]
	roundTripped := weightsFromSlice(original.asSlice())
	assert.Equal(t, original, roundTripped)
}

func TestClamp01_CoercesNaNAndInf(t *testing.T) {
	assert.Equal(t, 0.5, clamp01(math.NaN()))
	assert.Equal(t, 0.5, clamp01(math.Inf(1)))
	assert.Equal(t, 0.5, clamp01(math.Inf(-1)))
	assert.Equal(t, 0.0, clamp01(-1))
	assert.Equal(t, 1.0, clamp01(2))
}
