package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyStatsMarshalUndefinedProfitFactor(t *testing.T) {
	t.Parallel()

	day := DailyStats{
		Date:                "7/21/25",
		TradeCount:          1,
		ProfitLoss:          1000,
		Wins:                1,
		GrossProfit:         1000,
		ProfitFactor:        math.Inf(1),
		ProfitFactorDefined: false,
	}

	data, err := json.Marshal(day)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded["profit_factor"])
	assert.Equal(t, false, decoded["profit_factor_defined"])
}

func TestDailyStatsMarshalDefinedProfitFactor(t *testing.T) {
	t.Parallel()

	day := DailyStats{
		Date:                "7/21/25",
		ProfitFactor:        2.5,
		ProfitFactorDefined: true,
	}

	data, err := json.Marshal(day)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 2.5, decoded["profit_factor"])
}
