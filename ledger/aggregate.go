package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// UncategorizedName is used for transactions with a blank category.
const UncategorizedName = "Uncategorized"

// Order controls the ordering of categories in an aggregate.
type Order int

const (
	// OrderFirstSeen keeps categories in the order they first appear.
	OrderFirstSeen Order = iota
	// OrderAmount sorts by descending amount, ties keep first-seen order.
	OrderAmount
)

// ParseOrder parses "first-seen" or "amount".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first-seen":
		return OrderFirstSeen, nil
	case "amount":
		return OrderAmount, nil
	}
	return OrderFirstSeen, fmt.Errorf("invalid category order %q, expected first-seen or amount", s)
}

func (o Order) String() string {
	if o == OrderAmount {
		return "amount"
	}
	return "first-seen"
}

// CategoryAmount is the summed amount of one category.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// CategoryAggregate holds per-category sums in a deterministic order.
type CategoryAggregate struct {
	categories []CategoryAmount
	index      map[string]int
}

// Categories returns a copy of the category sums in aggregate order.
func (a CategoryAggregate) Categories() []CategoryAmount {
	out := make([]CategoryAmount, len(a.categories))
	copy(out, a.categories)
	return out
}

// Get returns the sum for a category.
func (a CategoryAggregate) Get(name string) (decimal.Decimal, bool) {
	i, ok := a.index[name]
	if !ok {
		return decimal.Zero, false
	}
	return a.categories[i].Amount, true
}

// Len returns the number of categories.
func (a CategoryAggregate) Len() int {
	return len(a.categories)
}

// Total returns the sum across all categories.
func (a CategoryAggregate) Total() decimal.Decimal {
	total := decimal.Zero
	for _, c := range a.categories {
		total = total.Add(c.Amount)
	}
	return total
}

// Total sums the amounts of txs. An empty slice sums to zero.
func Total(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, txn := range txs {
		total = total.Add(txn.Amount)
	}
	return total
}

// Aggregate groups txs by category and sums each group.
func Aggregate(txs []Transaction, order Order) CategoryAggregate {
	agg := CategoryAggregate{index: make(map[string]int)}

	for _, txn := range txs {
		name := categoryName(txn.Category)
		if i, ok := agg.index[name]; ok {
			agg.categories[i].Amount = agg.categories[i].Amount.Add(txn.Amount)
			continue
		}
		agg.index[name] = len(agg.categories)
		agg.categories = append(agg.categories, CategoryAmount{Name: name, Amount: txn.Amount})
	}

	if order == OrderAmount {
		slices.SortStableFunc(agg.categories, func(a, b CategoryAmount) int {
			return b.Amount.Cmp(a.Amount)
		})
		for i, c := range agg.categories {
			agg.index[c.Name] = i
		}
	}

	return agg
}

func categoryName(category string) string {
	name := strings.TrimSpace(category)
	if name == "" {
		return UncategorizedName
	}
	return name
}

// Summary holds the headline figures of a period.
type Summary struct {
	Period  Period
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Net returns income minus expense.
func (s Summary) Net() decimal.Decimal {
	return s.Income.Sub(s.Expense)
}

// Summarize computes the totals of a partition.
func Summarize(period Period, p Partition) Summary {
	return Summary{
		Period:  period,
		Income:  Total(p.Income),
		Expense: Total(p.Expense),
	}
}

// FormatAmount renders an amount with two decimal places.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
