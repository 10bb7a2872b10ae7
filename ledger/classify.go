package ledger

import (
	"strings"
	"unicode"
)

// Class is the side of the ledger a transaction belongs to.
type Class int

const (
	Unclassified Class = iota
	Income
	Expense
)

func (c Class) String() string {
	switch c {
	case Income:
		return "Income"
	case Expense:
		return "Expense"
	default:
		return "Unclassified"
	}
}

// Match describes how a type label was classified.
type Match int

const (
	// MatchNone means the label names neither class.
	MatchNone Match = iota
	// MatchExact means the label is exactly "income" or "expense", ignoring case
	// and surrounding space.
	MatchExact
	// MatchToken means exactly one of the keywords appears as a whole word.
	MatchToken
	// MatchSubstring means exactly one of the keywords appears inside the label.
	MatchSubstring
	// MatchAmbiguous means the label mentions both keywords.
	MatchAmbiguous
)

func (m Match) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchToken:
		return "token"
	case MatchSubstring:
		return "substring"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// IsFallback reports whether the match needed the lenient rules.
func (m Match) IsFallback() bool {
	return m == MatchToken || m == MatchSubstring
}

const (
	incomeKeyword  = "income"
	expenseKeyword = "expense"
)

// Classify maps a raw type label to a Class.
//
// Rules are tried in order:
//  1. exact match on the trimmed, lower-cased label
//  2. exactly one keyword present as a whole word
//  3. exactly one keyword present as a substring
//
// A label that mentions both keywords without being an exact match is
// ambiguous and classifies as Unclassified, so it never lands in both
// partitions.
func Classify(label string) (Class, Match) {
	normalized := strings.ToLower(strings.TrimSpace(label))

	switch normalized {
	case incomeKeyword:
		return Income, MatchExact
	case expenseKeyword:
		return Expense, MatchExact
	}

	hasIncome := strings.Contains(normalized, incomeKeyword)
	hasExpense := strings.Contains(normalized, expenseKeyword)
	if hasIncome && hasExpense {
		return Unclassified, MatchAmbiguous
	}

	incomeToken, expenseToken := false, false
	for _, word := range strings.FieldsFunc(normalized, func(r rune) bool { return !unicode.IsLetter(r) }) {
		switch word {
		case incomeKeyword:
			incomeToken = true
		case expenseKeyword:
			expenseToken = true
		}
	}
	if incomeToken {
		return Income, MatchToken
	}
	if expenseToken {
		return Expense, MatchToken
	}

	if hasIncome {
		return Income, MatchSubstring
	}
	if hasExpense {
		return Expense, MatchSubstring
	}

	return Unclassified, MatchNone
}

// Partition is the period's transactions split by class.
//
// Income and Expense are disjoint. Fallback holds the classified transactions
// that needed a lenient match, so they also appear in Income or Expense.
// Ambiguous and Unclassified transactions appear in neither partition.
type Partition struct {
	Income  []Transaction
	Expense []Transaction

	Fallback     []Transaction
	Ambiguous    []Transaction
	Unclassified []Transaction
}

// IsEmpty reports whether neither side has any transactions.
func (p Partition) IsEmpty() bool {
	return len(p.Income) == 0 && len(p.Expense) == 0
}
