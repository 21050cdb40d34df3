package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Uncategorized buckets spend on categories missing from the budget table.
const Uncategorized = "미분류"

type (
	BudgetItem struct {
		Category  string `json:"category"`
		Allocated Money  `json:"allocated"`
	}

	// Budget is the fixed annual allocation table. Items keep the order in
	// which categories are shown.
	Budget struct {
		Year  int          `json:"year"`
		Total Money        `json:"total"`
		Items []BudgetItem `json:"items"`
	}

	budgetFile struct {
		Year  int `toml:"year"`
		Items []struct {
			Category  string `toml:"category"`
			Allocated int64  `toml:"allocated"`
		} `toml:"item"`
	}
)

// DefaultBudget is the 2026 allocation used when no budget file is set.
func DefaultBudget() Budget {
	return newBudget(2026, []BudgetItem{
		{Category: "예배비", Allocated: NewMoney(570_000)},
		{Category: "교육비", Allocated: NewMoney(2_200_000)},
		{Category: "교사교육비", Allocated: NewMoney(356_000)},
		{Category: "행사비", Allocated: NewMoney(1_701_000)},
		{Category: "성경학교 및 수련회", Allocated: NewMoney(940_000)},
		{Category: "운영행정비", Allocated: NewMoney(530_000)},
	})
}

func newBudget(year int, items []BudgetItem) Budget {
	var total Money
	for _, it := range items {
		total = total.Add(it.Allocated)
	}
	return Budget{Year: year, Total: total, Items: items}
}

// LoadBudget reads a budget table from a TOML file of the form
//
//	year = 2026
//	[[item]]
//	category = "예배비"
//	allocated = 570000
func LoadBudget(path string) (Budget, error) {
	var f budgetFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return Budget{}, fmt.Errorf("decode budget file: %w", err)
	}
	items := make([]BudgetItem, 0, len(f.Items))
	for _, it := range f.Items {
		items = append(items, BudgetItem{Category: strings.TrimSpace(it.Category), Allocated: NewMoney(it.Allocated)})
	}
	b := newBudget(f.Year, items)
	if err := b.Validate(); err != nil {
		return Budget{}, fmt.Errorf("invalid budget file %s: %w", path, err)
	}
	return b, nil
}

func (b Budget) Validate() error {
	var errs []error
	if b.Year < 2000 || b.Year > 2100 {
		errs = append(errs, fmt.Errorf("year %d out of range", b.Year))
	}
	if len(b.Items) == 0 {
		errs = append(errs, errors.New("no budget items"))
	}
	seen := make(map[string]bool, len(b.Items))
	for _, it := range b.Items {
		switch {
		case it.Category == "":
			errs = append(errs, errors.New("empty category"))
		case seen[it.Category]:
			errs = append(errs, fmt.Errorf("duplicate category %q", it.Category))
		}
		seen[it.Category] = true
		if it.Allocated.IsNegative() {
			errs = append(errs, fmt.Errorf("negative allocation for %q", it.Category))
		}
	}
	return errors.Join(errs...)
}

func (b Budget) Categories() []string {
	out := make([]string, len(b.Items))
	for i, it := range b.Items {
		out[i] = it.Category
	}
	return out
}

func (b Budget) Has(category string) bool {
	_, ok := b.Allocated(category)
	return ok
}

func (b Budget) Allocated(category string) (Money, bool) {
	for _, it := range b.Items {
		if it.Category == category {
			return it.Allocated, true
		}
	}
	return Money{}, false
}
