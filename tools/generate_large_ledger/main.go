// Large Ledger Generator
//
// This tool generates a large CSV ledger for performance testing and profiling.
// It creates realistic income and expense rows, including the irregular type
// labels and blank cells found in hand-kept spreadsheets.
//
// Usage:
//
//	go run main.go > large.csv
//	go run main.go 20000000 > large.csv  # Specify target size in bytes
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultTargetSize = 10 * 1024 * 1024 // 10MB
)

var (
	incomeCategories = []string{
		"Salary", "Bonus", "Freelance", "Dividends", "Interest", "Rental",
	}

	expenseCategories = []string{
		"Rent", "Groceries", "Restaurants", "Fuel", "Transit", "Utilities",
		"Internet", "Clothing", "Electronics", "Movies", "Medical",
		"Insurance", "Taxes", "Gifts", "",
	}

	// Labels other than the exact keywords exercise the lenient matching.
	incomeLabels  = []string{"Income", "Income", "Income", "income", "Other Income", "Incomes"}
	expenseLabels = []string{"Expense", "Expense", "Expense", "EXPENSE", "Card Expense", "Expenses"}
	otherLabels   = []string{"Transfer", "Income/Expense"}

	notes = []string{
		"", "", "", "monthly", "paid by card", "reimbursable", "split with flatmates",
	}
)

func main() {
	targetSize := defaultTargetSize
	if len(os.Args) > 1 {
		if size, err := strconv.Atoi(os.Args[1]); err == nil {
			targetSize = size
		}
	}

	out := &countingWriter{w: bufio.NewWriter(os.Stdout)}
	w := csv.NewWriter(out)

	// Write header
	_ = w.Write([]string{"DATE", "TYPE", "CATEGORY", "AMOUNT", "NOTE"})

	currentDate := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	rowCount := 0

	for out.n < targetSize {
		// Mix different kinds of rows
		var row []string
		switch rand.Intn(10) {
		case 0, 1: // 20% - Income
			row = generateRow(currentDate, incomeLabels, incomeCategories, 1000, 60000)
		case 9: // 10% - Transfers and ambiguous labels
			row = generateRow(currentDate, otherLabels, expenseCategories, 10, 5000)
		default: // 70% - Expense
			row = generateRow(currentDate, expenseLabels, expenseCategories, 5, 2500)
		}

		_ = w.Write(row)
		rowCount++

		// Several rows share a day
		if rand.Intn(4) == 0 {
			currentDate = currentDate.AddDate(0, 0, 1)
		}

		if rowCount%1000 == 0 {
			w.Flush()
		}
	}

	w.Flush()
	_ = out.w.Flush()

	fmt.Fprintf(os.Stderr, "\nGenerated %d bytes with %d rows\n", out.n, rowCount)
}

func generateRow(date time.Time, labels, categories []string, min, max int64) []string {
	return []string{
		formatDate(date),
		labels[rand.Intn(len(labels))],
		categories[rand.Intn(len(categories))],
		randAmount(min, max),
		notes[rand.Intn(len(notes))],
	}
}

// Helper functions

// formatDate alternates between the day-first layouts the loader accepts.
func formatDate(date time.Time) string {
	switch rand.Intn(4) {
	case 0:
		return date.Format("2/1/2006")
	case 1:
		return date.Format("02-01-2006")
	default:
		return date.Format("02/01/2006")
	}
}

func randAmount(min, max int64) string {
	cents := min*100 + rand.Int63n((max-min)*100)
	if rand.Intn(50) == 0 {
		return "" // blank amounts count as zero
	}
	return decimal.New(cents, -2).StringFixed(2)
}

type countingWriter struct {
	w *bufio.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
