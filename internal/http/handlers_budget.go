package http

import (
	"net/http"

	"budgetpro/internal/core"
)

type createCategoryRequest struct {
	GroupID string `json:"groupId"`
	Name    string `json:"name"`
}

type createPeriodRequest struct {
	GroupID   string `json:"groupId"`
	StartDate string `json:"startDate"`
}

type setAllocationRequest struct {
	PeriodID   string `json:"periodId"`
	CategoryID string `json:"categoryId"`
	Amount     int64  `json:"amount"` // minor units
	Currency   string `json:"currency"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	c, err := s.deps.Budgets.CreateCategory(r.Context(), sanitizeInput(req.GroupID), sanitizeInput(req.Name))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(c).Write(w, r)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	groupID := queryString(r.URL.Query(), "groupId")
	if groupID == "" {
		BadRequestError("groupId is required").Write(w, r)
		return
	}

	cats, err := s.deps.Budgets.ListCategories(r.Context(), groupID)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(map[string]any{"categories": cats}).Write(w, r)
}

func (s *Server) handleArchiveCategory(w http.ResponseWriter, r *http.Request) {
	groupID := queryString(r.URL.Query(), "groupId")
	if groupID == "" {
		BadRequestError("groupId is required").Write(w, r)
		return
	}

	if err := s.deps.Budgets.ArchiveCategory(r.Context(), groupID, r.PathValue("id")); err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w, r)
}

func (s *Server) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req createPeriodRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	p, err := s.deps.Budgets.CreatePeriod(r.Context(), sanitizeInput(req.GroupID), sanitizeInput(req.StartDate))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(p).Write(w, r)
}

func (s *Server) handleGetPeriod(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Budgets.GetPeriod(r.Context(), r.PathValue("id"))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Body(p).Write(w, r)
}

func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	periodID := r.PathValue("id")
	if _, err := s.deps.Budgets.GetPeriod(r.Context(), periodID); err != nil {
		FromError(r, err).Write(w, r)
		return
	}

	allocs, err := s.deps.Budgets.ListAllocations(r.Context(), periodID)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if allocs == nil {
		allocs = []core.Allocation{}
	}
	NewJSONResponse().Body(map[string]any{"allocations": allocs}).Write(w, r)
}

func (s *Server) handleSetAllocation(w http.ResponseWriter, r *http.Request) {
	var req setAllocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	a, err := s.deps.Budgets.SetAllocation(r.Context(),
		sanitizeInput(req.PeriodID), sanitizeInput(req.CategoryID), req.Amount, req.Currency)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(a).Write(w, r)
}

func (s *Server) handlePeriodSummary(w http.ResponseWriter, r *http.Request) {
	groupID := queryString(r.URL.Query(), "groupId")
	if groupID == "" {
		BadRequestError("groupId is required").Write(w, r)
		return
	}

	view, err := s.deps.Reconciliation.ComputePeriodBudget(r.Context(), groupID, r.PathValue("id"))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if view.Categories == nil {
		view.Categories = []core.CategoryBudgetView{}
	}
	NewJSONResponse().Body(map[string]any{"summary": view}).Write(w, r)
}
