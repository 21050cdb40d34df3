package http

import (
	"fmt"
	"net/http"

	"yesan/internal/core"
	applog "yesan/internal/log"
)

// expenseList is the payload of GET /api/expenses.
type expenseList struct {
	Status   core.ReimbursementFilter `json:"status"`
	Category string                   `json:"category,omitempty"`
	Count    int                      `json:"count"`
	Total    core.Money               `json:"total"`
	Expenses []core.Expense           `json:"expenses"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(s.expenses.Budget()).Write(w)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.expenses.Summary(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpRead, err)
		return
	}
	NewResponse().JSON(sum).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := core.ParseReimbursementFilter(sanitizeInput(q.Get("status")))
	if err != nil {
		s.fail(w, r, applog.OpList, fmt.Errorf("%w: %v", errInvalidInput, err))
		return
	}
	category := sanitizeInput(q.Get("category"))

	list, err := s.expenses.List(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	list = core.FilterCategory(core.FilterReimbursement(list, status), category)

	var total core.Money
	for _, e := range list {
		total = total.Add(e.Amount)
	}
	NewResponse().JSON(expenseList{
		Status:   status,
		Category: category,
		Count:    len(list),
		Total:    total,
		Expenses: nonNil(list),
	}).Write(w)
}

func (s *Server) handleByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.List(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	groups := core.GroupByCategory(list, s.expenses.Budget())
	if groups == nil {
		groups = []core.CategoryGroup{}
	}
	NewResponse().JSON(groups).Write(w)
}

func (s *Server) handleByMonth(w http.ResponseWriter, r *http.Request) {
	list, err := s.expenses.List(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	groups := core.GroupByMonth(list)
	if groups == nil {
		groups = []core.MonthGroup{}
	}
	NewResponse().JSON(groups).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxBodyBytes)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	d, err := p.Draft()
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	e, err := s.expenses.Create(r.Context(), d)
	if err != nil {
		s.fail(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		JSON(e).
		Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxBodyBytes)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	d, err := p.Draft()
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	e, err := s.expenses.Update(r.Context(), r.PathValue("id"), d)
	if err != nil {
		s.fail(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(e).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handlePaidNow(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.MarkPaidNow(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, applog.OpReimburse, err)
		return
	}
	NewResponse().JSON(e).Write(w)
}

// handleReimbursement accepts either {"reimbursed": bool}, the checkbox,
// or {"reimbursedAt": "YYYY-MM-DD"}, the date field. An empty date reverts
// the expense to pending.
func (s *Server) handleReimbursement(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r, maxBodyBytes)
	if err := p.Parse(); err != nil {
		s.fail(w, r, applog.OpReimburse, err)
		return
	}

	id := r.PathValue("id")
	var (
		e   core.Expense
		err error
	)
	switch {
	case p.Has("reimbursedAt"):
		var d core.Date
		if d, err = core.ParseDate(p.Get("reimbursedAt")); err == nil {
			e, err = s.expenses.SetReimbursedAt(r.Context(), id, d)
		}
	case p.Has("reimbursed"):
		var v bool
		if v, err = p.Bool("reimbursed"); err == nil {
			e, err = s.expenses.SetReimbursed(r.Context(), id, v)
		}
	default:
		err = fmt.Errorf("%w: reimbursed or reimbursedAt is required", errInvalidInput)
	}
	if err != nil {
		s.fail(w, r, applog.OpReimburse, err)
		return
	}
	NewResponse().JSON(e).Write(w)
}

func nonNil(list []core.Expense) []core.Expense {
	if list == nil {
		return []core.Expense{}
	}
	return list
}
