package http

import (
	"net/http"

	"budgetpro/internal/core"
)

// linkItemRequest carries either a raw access token or a public token from
// the link widget, never both.
type linkItemRequest struct {
	GroupID     string `json:"groupId"`
	AccessToken string `json:"accessToken,omitempty"`
	PublicToken string `json:"publicToken,omitempty"`
}

type linkTokenRequest struct {
	UserID string `json:"userId"`
}

type syncQueuedResponse struct {
	ItemID string `json:"itemId"`
	Queued bool   `json:"queued"`
}

func (s *Server) handleLinkItem(w http.ResponseWriter, r *http.Request) {
	var req linkItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	if req.AccessToken != "" && req.PublicToken != "" {
		BadRequestError("accessToken and publicToken are mutually exclusive").Write(w, r)
		return
	}

	var (
		item core.Item
		err  error
	)
	if req.PublicToken != "" {
		item, err = s.deps.Items.LinkPublicToken(r.Context(), sanitizeInput(req.GroupID), req.PublicToken)
	} else {
		item, err = s.deps.Items.Link(r.Context(), sanitizeInput(req.GroupID), req.AccessToken)
	}
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(item).Write(w, r)
}

func (s *Server) handleCreateLinkToken(w http.ResponseWriter, r *http.Request) {
	var req linkTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	token, err := s.deps.Items.CreateLinkToken(r.Context(), sanitizeInput(req.UserID))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(token).Write(w, r)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	groupID := queryString(r.URL.Query(), "groupId")
	if groupID == "" {
		BadRequestError("groupId is required").Write(w, r)
		return
	}
	accounts, err := s.deps.Accounts.List(r.Context(), groupID)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Body(map[string]any{"accounts": accounts}).Write(w, r)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Items.ListItems(r.Context())
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if items == nil {
		items = []core.Item{}
	}
	NewJSONResponse().Body(map[string]any{"items": items}).Write(w, r)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Items.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Body(item).Write(w, r)
}

// handleSyncItem answers 200 with the counters of an inline sync, or 202
// when the request was handed to the queue.
func (s *Server) handleSyncItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")
	result, queued, err := s.deps.Items.RequestSync(r.Context(), itemID)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if queued {
		NewJSONResponse().
			Status(http.StatusAccepted).
			Body(syncQueuedResponse{ItemID: itemID, Queued: true}).
			Write(w, r)
		return
	}
	NewJSONResponse().Body(result).Write(w, r)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	params := core.ListParams{
		AccountID: queryString(q, "accountId"),
		Cursor:    queryString(q, "cursor"),
		Category:  queryString(q, "category"),
	}
	if params.AccountID == "" {
		BadRequestError("accountId is required").Write(w, r)
		return
	}

	var err error
	if params.Limit, err = queryInt(q, "limit"); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	if params.MinAmount, err = queryInt64Ptr(q, "minAmount"); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}
	if params.MaxAmount, err = queryInt64Ptr(q, "maxAmount"); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	result, err := s.deps.Query.List(r.Context(), params)
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	NewJSONResponse().Body(result).Write(w, r)
}

type setCategoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	accountID := queryString(r.URL.Query(), "accountId")
	if accountID == "" {
		BadRequestError("accountId is required").Write(w, r)
		return
	}

	var req setCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w, r)
		return
	}

	result, err := s.deps.Mutation.SetCategory(r.Context(), core.SetCategoryParams{
		TransactionID: r.PathValue("id"),
		AccountID:     accountID,
		Category:      sanitizeInput(req.Category),
	})
	if err != nil {
		FromError(r, err).Write(w, r)
		return
	}
	if result.Updated == nil {
		NotFoundError("transaction not found").Write(w, r)
		return
	}
	NewJSONResponse().Body(result).Write(w, r)
}
