package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"spendly/internal/core"
	"spendly/internal/export"
	applog "spendly/internal/log"
	"spendly/internal/services"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	in := services.ExpenseInput{
		Item:     p.Raw("item"),
		Category: p.Get("category"),
	}
	amount, _, err := p.Money("amount")
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	in.Amount = amount
	date, present, err := p.Date("date")
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	if present {
		in.Date = &date
	}

	e, err := s.deps.Expenses.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	NewResponse().JSON(toExpenseDTO(e)).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Reports.List(r.Context(), userID, ParseListQuery(r.URL.Query()))
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	NewResponse().JSON(toListDTO(res)).Write(w)
}

func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	format, ok := export.ParseFormat(r.URL.Query().Get("format"))
	if !ok {
		BadRequestError("Unsupported export format").Write(w)
		return
	}

	expenses, err := s.deps.Reports.Export(r.Context(), userID, ParseFilter(r.URL.Query()))
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	if format == export.FormatJSON {
		NewResponse().JSON(toExpenseDTOs(expenses)).Write(w)
		return
	}
	data, err := export.Encode(format, expenses)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Expenses exported",
		applog.FieldUserID, userID,
		"format", string(format),
		"rows", len(expenses))
	NewResponse().File(data, format.ContentType(), format.Filename()).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	var patch core.ExpensePatch
	if p.Has("item") {
		item := p.Raw("item")
		patch.Item = &item
	}
	amount, present, err := p.Money("amount")
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if present {
		patch.Amount = &amount
	}
	if p.Has("category") {
		category := p.Get("category")
		patch.Category = &category
	}
	date, present, err := p.Date("date")
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	if present {
		patch.Date = &date
	}

	e, err := s.deps.Expenses.Update(r.Context(), userID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, applog.OpUpdate, err)
		return
	}
	NewResponse().JSON(toExpenseDTO(e)).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}
	if err := s.deps.Expenses.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	NewResponse().JSON(successDTO{Success: true}).Write(w)
}
