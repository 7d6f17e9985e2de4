// Package payloads holds the form bodies accepted for each outbox kind.
package payloads

import "github.com/shopspring/decimal"

// DailyReport is the RDO (relatório diário de operação) filled at the end of a shift.
type DailyReport struct {
	ReportDate   string     `json:"reportDate" validate:"required,datetime=2006-01-02"`
	Installation string     `json:"installation" validate:"required,max=120"`
	Shift        string     `json:"shift" validate:"required,oneof=DAY NIGHT"`
	Activities   []Activity `json:"activities" validate:"required,min=1,dive"`
	Notes        string     `json:"notes,omitempty" validate:"max=2000"`
}

type Activity struct {
	Description string          `json:"description" validate:"required,max=500"`
	Hours       decimal.Decimal `json:"hours" validate:"gt=0,lte=24"`
}

// ServiceOrder asks maintenance or logistics for work on board.
type ServiceOrder struct {
	Title        string `json:"title" validate:"required,max=160"`
	Description  string `json:"description" validate:"required,max=4000"`
	Priority     string `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT"`
	Installation string `json:"installation" validate:"required,max=120"`
	Equipment    string `json:"equipment,omitempty" validate:"max=120"`
}

// FinancialRequest covers advances, reimbursements and per diem.
type FinancialRequest struct {
	Category    string          `json:"category" validate:"required,oneof=ADVANCE REIMBURSEMENT PER_DIEM"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency    string          `json:"currency" validate:"required,len=3,uppercase"`
	Description string          `json:"description,omitempty" validate:"max=1000"`
	ExpenseDate string          `json:"expenseDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}
