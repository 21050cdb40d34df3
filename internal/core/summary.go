package core

import (
	"fmt"
	"sort"
)

type (
	CategorySummary struct {
		Category    string  `json:"category"`
		Allocated   Money   `json:"allocated"`
		Spent       Money   `json:"spent"`
		Remaining   Money   `json:"remaining"`
		Utilization float64 `json:"utilization"`
	}

	MonthTotal struct {
		Month  string `json:"month"` // YYYY-MM
		Amount Money  `json:"amount"`
	}

	// Summary is the dashboard view of the expense list against the budget.
	Summary struct {
		Year           int               `json:"year"`
		Total          Money             `json:"total"`
		TotalSpent     Money             `json:"totalSpent"`
		TotalRemaining Money             `json:"totalRemaining"`
		Utilization    float64           `json:"utilization"`
		Categories     []CategorySummary `json:"categories"`
		Uncategorized  Money             `json:"uncategorized"`
		Months         []MonthTotal      `json:"months"`
		Reimbursed     Money             `json:"reimbursed"`
		Pending        Money             `json:"pending"`
		Count          int               `json:"count"`
	}

	CategoryGroup struct {
		Category string    `json:"category"`
		Total    Money     `json:"total"`
		Expenses []Expense `json:"expenses"`
	}

	MonthGroup struct {
		Month    string    `json:"month"`
		Total    Money     `json:"total"`
		Expenses []Expense `json:"expenses"`
	}
)

// Summarize aggregates expenses against the budget. Months always holds the
// twelve months of the budget year, zero when nothing was spent.
func Summarize(expenses []Expense, b Budget) Summary {
	spent := make(map[string]Money, len(b.Items))
	byMonth := make(map[string]Money, 12)
	s := Summary{Year: b.Year, Total: b.Total, Count: len(expenses)}

	for _, e := range expenses {
		if b.Has(e.Category) {
			spent[e.Category] = spent[e.Category].Add(e.Amount)
		} else {
			s.Uncategorized = s.Uncategorized.Add(e.Amount)
		}
		s.TotalSpent = s.TotalSpent.Add(e.Amount)
		if k := e.Date.MonthKey(); k != "" {
			byMonth[k] = byMonth[k].Add(e.Amount)
		}
		if e.Reimbursed {
			s.Reimbursed = s.Reimbursed.Add(e.Amount)
		} else {
			s.Pending = s.Pending.Add(e.Amount)
		}
	}

	s.Categories = make([]CategorySummary, 0, len(b.Items))
	for _, it := range b.Items {
		s.Categories = append(s.Categories, CategorySummary{
			Category:    it.Category,
			Allocated:   it.Allocated,
			Spent:       spent[it.Category],
			Remaining:   remaining(it.Allocated, spent[it.Category]),
			Utilization: Percent(spent[it.Category], it.Allocated),
		})
	}
	s.TotalRemaining = remaining(s.Total, s.TotalSpent)
	s.Utilization = Percent(s.TotalSpent, s.Total)

	s.Months = make([]MonthTotal, 12)
	for m := 1; m <= 12; m++ {
		key := fmt.Sprintf("%04d-%02d", b.Year, m)
		s.Months[m-1] = MonthTotal{Month: key, Amount: byMonth[key]}
	}
	return s
}

func remaining(allocated, spent Money) Money {
	r := allocated.Sub(spent)
	if r.IsNegative() {
		return Money{}
	}
	return r
}

// GroupByCategory groups expenses in budget order. Categories without
// expenses are omitted; unknown categories are collected under
// Uncategorized at the end.
func GroupByCategory(expenses []Expense, b Budget) []CategoryGroup {
	idx := make(map[string]int)
	var groups []CategoryGroup
	add := func(name string, e Expense) {
		i, ok := idx[name]
		if !ok {
			i = len(groups)
			idx[name] = i
			groups = append(groups, CategoryGroup{Category: name})
		}
		groups[i].Expenses = append(groups[i].Expenses, e)
		groups[i].Total = groups[i].Total.Add(e.Amount)
	}
	for _, e := range expenses {
		name := e.Category
		if !b.Has(name) {
			name = Uncategorized
		}
		add(name, e)
	}

	order := make(map[string]int, len(b.Items)+1)
	for i, c := range b.Categories() {
		order[c] = i
	}
	order[Uncategorized] = len(b.Items)
	sort.SliceStable(groups, func(i, j int) bool {
		return order[groups[i].Category] < order[groups[j].Category]
	})
	return groups
}

// GroupByMonth groups dated expenses by month, most recent month first.
func GroupByMonth(expenses []Expense) []MonthGroup {
	idx := make(map[string]int)
	var groups []MonthGroup
	for _, e := range expenses {
		key := e.Date.MonthKey()
		if key == "" {
			continue
		}
		i, ok := idx[key]
		if !ok {
			i = len(groups)
			idx[key] = i
			groups = append(groups, MonthGroup{Month: key})
		}
		groups[i].Expenses = append(groups[i].Expenses, e)
		groups[i].Total = groups[i].Total.Add(e.Amount)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Month > groups[j].Month })
	return groups
}

// ReimbursementFilter selects expenses by reimbursement state.
type ReimbursementFilter string

const (
	FilterAll     ReimbursementFilter = "all"
	FilterPending ReimbursementFilter = "pending"
	FilterPaid    ReimbursementFilter = "paid"
)

func ParseReimbursementFilter(s string) (ReimbursementFilter, error) {
	switch f := ReimbursementFilter(s); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterPending, FilterPaid:
		return f, nil
	default:
		return "", fmt.Errorf("unknown reimbursement filter %q", s)
	}
}

func FilterReimbursement(expenses []Expense, f ReimbursementFilter) []Expense {
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		switch {
		case f == FilterPending && e.Reimbursed:
		case f == FilterPaid && !e.Reimbursed:
		default:
			out = append(out, e)
		}
	}
	return out
}

// FilterCategory keeps expenses of one category; "" keeps everything.
func FilterCategory(expenses []Expense, category string) []Expense {
	if category == "" {
		return expenses
	}
	out := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// Receipts returns the expenses that carry a receipt reference.
func Receipts(expenses []Expense) []Expense {
	var out []Expense
	for _, e := range expenses {
		if e.ReceiptURL != "" {
			out = append(out, e)
		}
	}
	return out
}
