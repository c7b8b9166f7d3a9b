package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/form"
	"github.com/Wordite/tablecrm-t/internal/order"
)

type ValueRequest struct {
	Value *string `json:"value" validate:"required,max=1024"`
}

type SelectionRequest struct {
	ID *int64 `json:"id" validate:"omitempty,gt=0"`
}

type SelectClientRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// UpdateItemRequest edits one numeric field of a line item. Values are capped
// at 1e9 so order totals stay finite.
type UpdateItemRequest struct {
	Field string   `json:"field" validate:"required,oneof=quantity price discount"`
	Value *float64 `json:"value" validate:"required,gte=0,lte=1000000000"`
}

// validateUpdateItem requires a positive quantity; price and discount may be 0.
func validateUpdateItem(sl validator.StructLevel) {
	req := sl.Current().Interface().(UpdateItemRequest)
	if req.Value == nil {
		return
	}
	if order.ItemField(req.Field) == order.FieldQuantity && *req.Value <= 0 {
		sl.ReportError(req.Value, "value", "Value", "gt", "0")
	}
}

type SubmitRequest struct {
	Commit *bool `json:"commit" validate:"required"`
}

// StateView is the form state plus the values derived from it.
type StateView struct {
	order.State
	Total float64 `json:"total"`
	Ready bool    `json:"ready"`
}

type SessionResponse struct {
	ID    uuid.UUID `json:"id"`
	State StateView `json:"state"`
}

type SubmitResponse struct {
	Commit   bool            `json:"commit"`
	Response json.RawMessage `json:"response"`
}

func newStateView(st order.State) StateView {
	return StateView{State: st, Total: st.Total(), Ready: st.ReadyToSubmit()}
}

// FormHandler exposes the order form service over HTTP.
type FormHandler struct {
	service  form.Service
	validate *validator.Validate
}

func NewFormHandler(service form.Service) *FormHandler {
	return &FormHandler{
		service:  service,
		validate: newValidator(),
	}
}

func (h *FormHandler) RegisterRoutes(router chi.Router) {
	router.Post("/sessions", h.handleCreateSession)
	router.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", h.handleGetState)
		r.Delete("/", h.handleDeleteSession)

		r.Put("/token-input", h.handleSetValue(h.service.SetTokenInput))
		r.Post("/token/apply", h.handleApplyToken)
		r.Put("/phone", h.handleSetValue(h.service.SetPhone))
		r.Put("/comment", h.handleSetValue(h.service.SetComment))
		r.Put("/product-search", h.handleSetValue(h.service.SetProductSearch))
		r.Put("/selections/{field}", h.handleSetSelection)
		r.Post("/client", h.handleSelectClient)

		r.Post("/items", h.handleAddItem)
		r.Patch("/items/{productID}", h.handleUpdateItem)
		r.Delete("/items/{productID}", h.handleRemoveItem)
		r.Post("/reset", h.handleReset)

		r.Get("/clients", lookupHandler(h.service.Clients))
		r.Get("/payboxes", lookupHandler(h.service.Payboxes))
		r.Get("/organizations", lookupHandler(h.service.Organizations))
		r.Get("/warehouses", lookupHandler(h.service.Warehouses))
		r.Get("/price-types", lookupHandler(h.service.PriceTypes))
		r.Get("/products", lookupHandler(h.service.Products))

		r.Post("/submit", h.handleSubmit)
	})
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.FromString(idParam)
	if err != nil {
		log.Warn().Err(err).Str("session_id", idParam).Msg("handler: failed to parse id parameter from URL")
		respondWithError(w, http.StatusBadRequest, "Invalid id parameter")
		return uuid.Nil, false
	}
	return id, true
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	param := chi.URLParam(r, "productID")
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid productID parameter")
		return 0, false
	}
	return id, true
}

func (h *FormHandler) respondWithState(w http.ResponseWriter, st order.State, err error) {
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newStateView(st))
}

func (h *FormHandler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, st, err := h.service.CreateSession(r.Context())
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	log.Info().Stringer("session_id", id).Msg("handler: session created")
	respondWithJSON(w, http.StatusCreated, SessionResponse{ID: id, State: newStateView(st)})
}

func (h *FormHandler) handleGetState(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.service.GetState(r.Context(), id)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FormHandler) handleSetValue(set func(context.Context, uuid.UUID, string) (order.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		var req ValueRequest
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
		st, err := set(r.Context(), id, *req.Value)
		h.respondWithState(w, st, err)
	}
}

func (h *FormHandler) handleApplyToken(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.service.ApplyToken(r.Context(), id)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleSetSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sel := order.Selection(chi.URLParam(r, "field"))
	if !sel.Valid() {
		respondWithError(w, http.StatusBadRequest, "Unknown selection field")
		return
	}
	var req SelectionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.service.SetSelection(r.Context(), id, sel, req.ID)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleSelectClient(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SelectClientRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.service.SelectClient(r.Context(), id, req.ID)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.service.AddProduct(r.Context(), id, req.ProductID)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	var req UpdateItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	st, err := h.service.UpdateItem(r.Context(), id, pid, order.ItemField(req.Field), *req.Value)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	pid, ok := productID(w, r)
	if !ok {
		return
	}
	st, err := h.service.RemoveItem(r.Context(), id, pid)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	st, err := h.service.ResetForm(r.Context(), id)
	h.respondWithState(w, st, err)
}

func (h *FormHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SubmitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	resp, err := h.service.Submit(r.Context(), id, *req.Commit)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, SubmitResponse{Commit: *req.Commit, Response: resp})
}

func lookupHandler[T any](fetch func(context.Context, uuid.UUID) (form.Lookup[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(w, r)
		if !ok {
			return
		}
		res, err := fetch(r.Context(), id)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, res)
	}
}
