package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billing-api/internal/models"
)

func TestScoreNonCompliantItems(t *testing.T) {
	items := []models.LineItem{
		{Description: "consulting", Amount: 5000, Compliant: true},
		{Description: "hardware", Amount: 3000, Compliant: true},
		{Description: "misc", Amount: 1500, Compliant: false},
	}

	result, err := Score(items)
	require.NoError(t, err)

	assert.Equal(t, int64(9500), result.Details.Totals.Subtotal)
	assert.Equal(t, int64(950), result.Details.Totals.Tax)
	assert.Equal(t, int64(10450), result.Details.Totals.Total)

	assert.Equal(t, 10, result.FraudScore)
	require.Len(t, result.Details.ComplianceFlags, 1)
	assert.Equal(t, FlagNonCompliantItems, result.Details.ComplianceFlags[0].Code)
	assert.Equal(t, "1 non-compliant line items", result.Details.ComplianceFlags[0].Message)
}

func TestScoreHighAmount(t *testing.T) {
	items := []models.LineItem{
		{Description: "licenses", Amount: 60000, Compliant: true},
	}

	result, err := Score(items)
	require.NoError(t, err)

	assert.Equal(t, 30, result.FraudScore)
	require.Len(t, result.Details.ComplianceFlags, 1)
	assert.Equal(t, FlagHighAmount, result.Details.ComplianceFlags[0].Code)
}

func TestScoreMediumAmount(t *testing.T) {
	// Subtotal 20000 -> total 22000, above the medium threshold only
	items := []models.LineItem{
		{Description: "services", Amount: 20000, Compliant: true},
	}

	result, err := Score(items)
	require.NoError(t, err)

	assert.Equal(t, 15, result.FraudScore)
	require.Len(t, result.Details.ComplianceFlags, 1)
	assert.Equal(t, FlagMediumAmount, result.Details.ComplianceFlags[0].Code)
}

func TestScoreEmptyItems(t *testing.T) {
	result, err := Score(nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.FraudScore)
	assert.Empty(t, result.Details.ComplianceFlags)
	assert.Equal(t, models.Totals{}, result.Details.Totals)
	assert.NotNil(t, result.Details.LineItems)
}

func TestScoreThresholdExclusivity(t *testing.T) {
	// Well above both thresholds: only HIGH_AMOUNT may fire
	items := []models.LineItem{
		{Description: "a", Amount: 100000, Compliant: true},
		{Description: "b", Amount: 100000, Compliant: true},
	}

	result, err := Score(items)
	require.NoError(t, err)

	codes := []string{}
	for _, flag := range result.Details.ComplianceFlags {
		codes = append(codes, flag.Code)
	}
	assert.Contains(t, codes, FlagHighAmount)
	assert.NotContains(t, codes, FlagMediumAmount)
}

func TestScoreUpperBound(t *testing.T) {
	// 12 non-compliant items above the high threshold: 30 + 120 caps at 100
	items := make([]models.LineItem, 12)
	for i := range items {
		items[i] = models.LineItem{Description: "x", Amount: 10000, Compliant: false}
	}

	result, err := Score(items)
	require.NoError(t, err)

	assert.Equal(t, 100, result.FraudScore)
}

func TestScoreDeterminism(t *testing.T) {
	items := []models.LineItem{
		{Description: "consulting", Amount: 5000, Compliant: true},
		{Description: "misc", Amount: 1500, Compliant: false},
	}

	first, err := Score(items)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		next, err := Score(items)
		require.NoError(t, err)

		assert.Equal(t, first.FraudScore, next.FraudScore)
		assert.Equal(t, first.Summary, next.Summary)

		firstJSON, err := json.Marshal(first.Details)
		require.NoError(t, err)
		nextJSON, err := json.Marshal(next.Details)
		require.NoError(t, err)
		assert.Equal(t, firstJSON, nextJSON, "details must encode byte-for-byte identically")
	}
}

func TestScoreNegativeAmount(t *testing.T) {
	items := []models.LineItem{
		{Description: "refund", Amount: -100, Compliant: true},
	}

	_, err := Score(items)
	assert.Error(t, err)
}

func TestScoreSummaryMentionsFlags(t *testing.T) {
	items := []models.LineItem{
		{Description: "misc", Amount: 500, Compliant: false},
	}

	result, err := Score(items)
	require.NoError(t, err)
	assert.Contains(t, result.Summary, FlagNonCompliantItems)
}
