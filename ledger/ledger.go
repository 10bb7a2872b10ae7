// Package ledger provides the transaction model for monthly income and expense
// reports. It selects the transactions that fall inside a reporting period,
// classifies them as income or expense, and aggregates amounts per category.
//
// A Ledger is immutable once built: filtering and partitioning return new values
// and never touch the transactions they were derived from. All monetary amounts
// use decimal arithmetic; rounding to two places happens only when a value is
// presented.
//
// Example usage:
//
//	// Load a ledger from disk
//	l, err := loader.New().Load(ctx, "ledger.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Select March 2024 and split it into income and expense
//	period, _ := ledger.ParsePeriod("March", "2024")
//	part := l.Partition(period)
//	summary := ledger.Summarize(period, part)
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single row of the ledger.
type Transaction struct {
	// Row is the 1-based row in the source, header included. Zero when the
	// transaction was built in memory.
	Row int

	Date     time.Time
	Type     string // Raw type label, see Classify
	Category string
	Amount   decimal.Decimal
	Note     string
}

// Ledger is an ordered, read-only sequence of transactions.
type Ledger struct {
	source       string
	transactions []Transaction
}

// New creates a ledger from transactions in source order.
// The slice is copied so later changes by the caller are not observed.
func New(source string, transactions []Transaction) *Ledger {
	txs := make([]Transaction, len(transactions))
	copy(txs, transactions)

	return &Ledger{
		source:       source,
		transactions: txs,
	}
}

// Source returns the name of the file the ledger was loaded from.
func (l *Ledger) Source() string {
	return l.source
}

// Len returns the number of transactions.
func (l *Ledger) Len() int {
	return len(l.transactions)
}

// Transactions returns a copy of all transactions in source order.
func (l *Ledger) Transactions() []Transaction {
	txs := make([]Transaction, len(l.transactions))
	copy(txs, l.transactions)
	return txs
}

// Filter returns a new ledger holding only the transactions dated inside period.
// Filtering an already filtered ledger by the same period yields the same rows.
func (l *Ledger) Filter(period Period) *Ledger {
	var selected []Transaction
	for _, txn := range l.transactions {
		if period.Contains(txn.Date) {
			selected = append(selected, txn)
		}
	}

	return &Ledger{
		source:       l.source,
		transactions: selected,
	}
}

// Partition filters the ledger to period and classifies what remains.
func (l *Ledger) Partition(period Period) Partition {
	var p Partition

	for _, txn := range l.transactions {
		if !period.Contains(txn.Date) {
			continue
		}

		class, match := Classify(txn.Type)
		switch match {
		case MatchAmbiguous:
			p.Ambiguous = append(p.Ambiguous, txn)
			continue
		case MatchNone:
			p.Unclassified = append(p.Unclassified, txn)
			continue
		case MatchToken, MatchSubstring:
			p.Fallback = append(p.Fallback, txn)
		}

		switch class {
		case Income:
			p.Income = append(p.Income, txn)
		case Expense:
			p.Expense = append(p.Expense, txn)
		}
	}

	return p
}
