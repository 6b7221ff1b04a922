package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"babybudget/internal/core"
	"babybudget/internal/log"
	mwauth "babybudget/internal/middleware/auth"
)

const (
	msgSpendingsAdded  = "Spending records successfully added"
	msgSpendingDeleted = "Spending record successfully deleted"
	msgBudgetDeleted   = "Budget successfully deleted"
)

type batchResponse struct {
	Message   string               `json:"message"`
	Spendings []core.SpendingEntry `json:"spendings"`
}

type updateResponse struct {
	Category core.Category     `json:"category"`
	Spending core.SpendingItem `json:"spending"`
}

func (s *Server) handleSetPeriodBudget(w http.ResponseWriter, r *http.Request) {
	var req periodBudgetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	period, err := s.api.SetPeriodBudget(r.Context(), mwauth.UserID(r.Context()), req.toPeriod())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(period).Write(w)
}

func (s *Server) handleListPeriodBudgets(w http.ResponseWriter, r *http.Request) {
	periods, err := s.api.ListPeriodBudgets(r.Context(), mwauth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(periods).Write(w)
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseMonthParams(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	overview, err := s.api.MonthOverview(r.Context(), mwauth.UserID(r.Context()), year, month)
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(overview).Write(w)
}

func (s *Server) handleAddSpending(w http.ResponseWriter, r *http.Request) {
	var req spendingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	added, err := s.api.AddSpending(r.Context(), mwauth.UserID(r.Context()), req.toNewSpending())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(added).Write(w)
}

func (s *Server) handleAddSpendings(w http.ResponseWriter, r *http.Request) {
	var req batchSpendingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	added, err := s.api.AddSpendings(r.Context(), mwauth.UserID(r.Context()), req.toNewSpendings())
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).
		Body(batchResponse{Message: msgSpendingsAdded, Spendings: added}).
		Write(w)
}

func (s *Server) handleListSpending(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.ListSpending(r.Context(), mwauth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleListSpendingByCategory(w http.ResponseWriter, r *http.Request) {
	list, err := s.api.ListSpendingByCategory(r.Context(), mwauth.UserID(r.Context()), mux.Vars(r)["category"])
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(list).Write(w)
}

func (s *Server) handleUpdateSpending(w http.ResponseWriter, r *http.Request) {
	var req spendingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	entry, err := s.api.UpdateSpending(r.Context(), mwauth.UserID(r.Context()), mux.Vars(r)["uid"], req.toNewSpending())
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	NewJSONResponse().Body(updateResponse{Category: entry.Category, Spending: entry.Spending}).Write(w)
}

func (s *Server) handleDeleteSpending(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteSpending(r.Context(), mwauth.UserID(r.Context()), mux.Vars(r)["uid"]); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(MessageBody{Message: msgSpendingDeleted}).Write(w)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.api.DeleteBudget(r.Context(), mwauth.UserID(r.Context())); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	NewJSONResponse().Body(MessageBody{Message: msgBudgetDeleted}).Write(w)
}
