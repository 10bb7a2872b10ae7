package ledger

import (
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		label string
		class Class
		match Match
	}{
		{"Income", Income, MatchExact},
		{"INCOME", Income, MatchExact},
		{"  expense ", Expense, MatchExact},
		{"Other Income", Income, MatchToken},
		{"expense/household", Expense, MatchToken},
		{"Incomes", Income, MatchSubstring},
		{"Expenses", Expense, MatchSubstring},
		{"Income and Expense", Unclassified, MatchAmbiguous},
		{"incomeexpense", Unclassified, MatchAmbiguous},
		{"Transfer", Unclassified, MatchNone},
		{"", Unclassified, MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			class, match := Classify(tt.label)
			assert.Equal(t, tt.class, class)
			assert.Equal(t, tt.match, match)
		})
	}
}

func TestPartitionBothKeywords(t *testing.T) {
	period := Period{Month: time.August, Year: 2024}
	l := New("mixed.csv", []Transaction{
		txn(date(2024, time.August, 1), "Income", "Salary", "100"),
		txn(date(2024, time.August, 2), "Income/Expense adjustment", "Misc", "40"),
		txn(date(2024, time.August, 3), "Refund (income)", "Shop", "5"),
		txn(date(2024, time.August, 4), "Transfer", "Savings", "70"),
		txn(date(2024, time.August, 5), "expense", "Food", "20"),
	})

	part := l.Partition(period)

	assert.Equal(t, 2, len(part.Income))
	assert.Equal(t, 1, len(part.Expense))
	assert.Equal(t, 1, len(part.Ambiguous))
	assert.Equal(t, 1, len(part.Unclassified))
	assert.Equal(t, 1, len(part.Fallback))
	assert.Equal(t, "Shop", part.Fallback[0].Category)

	// The ambiguous row is counted on neither side
	summary := Summarize(period, part)
	assert.Equal(t, "105.00", FormatAmount(summary.Income))
	assert.Equal(t, "20.00", FormatAmount(summary.Expense))
}

func TestMatchIsFallback(t *testing.T) {
	assert.False(t, MatchExact.IsFallback())
	assert.True(t, MatchToken.IsFallback())
	assert.True(t, MatchSubstring.IsFallback())
	assert.False(t, MatchAmbiguous.IsFallback())
}
