package http

import (
	"time"

	"spendly/internal/core"
	"spendly/internal/services"
)

// Response shapes. Amounts are decimal numbers in currency units.
type (
	userDTO struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Email     string     `json:"email"`
		Budget    float64    `json:"budget"`
		CreatedAt *time.Time `json:"createdAt,omitempty"`
	}

	authDTO struct {
		Token string  `json:"token"`
		User  userDTO `json:"user"`
	}

	// expenseDTO repeats the id as _id for clients written against the
	// document-store API.
	expenseDTO struct {
		LegacyID  string    `json:"_id"`
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Item      string    `json:"item"`
		Amount    float64   `json:"amount"`
		Category  string    `json:"category"`
		Date      time.Time `json:"date"`
		CreatedAt time.Time `json:"createdAt"`
	}

	categoryTotalDTO struct {
		Category string  `json:"_id"`
		Total    float64 `json:"total"`
	}

	budgetDTO struct {
		Budget    float64 `json:"budget"`
		Total     float64 `json:"total"`
		Remaining float64 `json:"remaining"`
		State     string  `json:"state"`
	}

	listDTO struct {
		Expenses             []expenseDTO       `json:"expenses"`
		TotalPages           int                `json:"totalPages"`
		CurrentPage          int                `json:"currentPage"`
		TotalItems           int                `json:"totalItems"`
		TotalExpense         float64            `json:"totalExpense"`
		CategoryDistribution []categoryTotalDTO `json:"categoryDistribution"`
		Budget               budgetDTO          `json:"budget"`
	}

	monthPointDTO struct {
		Month       string  `json:"month"`
		Year        int     `json:"year"`
		MonthNumber int     `json:"monthNumber"`
		Total       float64 `json:"total"`
	}

	statsDTO struct {
		MonthlyTrend         []monthPointDTO    `json:"monthlyTrend"`
		CategoryDistribution []categoryTotalDTO `json:"categoryDistribution"`
	}

	successDTO struct {
		Success bool `json:"success"`
	}
)

func toUserDTO(u core.User, withCreatedAt bool) userDTO {
	dto := userDTO{ID: u.ID, Name: u.Name, Email: u.Email, Budget: u.Budget.Float64()}
	if withCreatedAt {
		created := u.CreatedAt
		dto.CreatedAt = &created
	}
	return dto
}

func toAuthDTO(res services.AuthResult) authDTO {
	return authDTO{Token: res.Token, User: toUserDTO(res.User, false)}
}

func toExpenseDTO(e core.Expense) expenseDTO {
	return expenseDTO{
		LegacyID:  e.ID,
		ID:        e.ID,
		UserID:    e.UserID,
		Item:      e.Item,
		Amount:    e.Amount.Float64(),
		Category:  e.Category,
		Date:      e.Date,
		CreatedAt: e.CreatedAt,
	}
}

func toExpenseDTOs(expenses []core.Expense) []expenseDTO {
	out := make([]expenseDTO, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseDTO(e)
	}
	return out
}

func toCategoryDTOs(dist []core.CategoryTotal) []categoryTotalDTO {
	out := make([]categoryTotalDTO, len(dist))
	for i, c := range dist {
		out[i] = categoryTotalDTO{Category: c.Category, Total: c.Total.Float64()}
	}
	return out
}

func toListDTO(res services.ListResult) listDTO {
	return listDTO{
		Expenses:             toExpenseDTOs(res.Expenses),
		TotalPages:           res.TotalPages,
		CurrentPage:          res.CurrentPage,
		TotalItems:           res.TotalItems,
		TotalExpense:         res.TotalExpense.Float64(),
		CategoryDistribution: toCategoryDTOs(res.CategoryDistribution),
		Budget: budgetDTO{
			Budget:    res.Budget.Budget.Float64(),
			Total:     res.Budget.Total.Float64(),
			Remaining: res.Budget.Remaining.Float64(),
			State:     res.Budget.State,
		},
	}
}

func toStatsDTO(st core.Stats) statsDTO {
	trend := make([]monthPointDTO, len(st.MonthlyTrend))
	for i, m := range st.MonthlyTrend {
		trend[i] = monthPointDTO{Month: m.Label(), Year: m.Year, MonthNumber: m.Month, Total: m.Total.Float64()}
	}
	return statsDTO{MonthlyTrend: trend, CategoryDistribution: toCategoryDTOs(st.CategoryDistribution)}
}
