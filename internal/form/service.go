// Package form drives one order form per session: state changes, gated
// catalog lookups and sale submission.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/order"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

const (
	DefaultMinPhoneLength  = 6
	DefaultMinSearchLength = 2
)

var (
	ErrTokenRequired      = errors.New("token is not set")
	ErrUnknownClient      = errors.New("client is not in the current client list")
	ErrUnknownProduct     = errors.New("product is not in the current product list")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// Options tune lookup gating. Zero values fall back to the defaults.
type Options struct {
	MinPhoneLength  int
	MinSearchLength int
	ProductLimit    int
	Now             func() time.Time
}

// Lookup is the answer to a catalog lookup. Enabled is false when the
// request was not made (no token or too short a filter). Stale is set
// when the session's inputs changed while the request was in flight; a
// stale result is not recorded and should be discarded by the caller.
type Lookup[T any] struct {
	Query   string `json:"query"`
	Enabled bool   `json:"enabled"`
	Stale   bool   `json:"stale"`
	Items   []T    `json:"items"`
}

// NamedOrganization carries the derived display name next to the record.
type NamedOrganization struct {
	tablecrm.Organization
	DisplayName string `json:"display_name"`
}

type Service interface {
	CreateSession(ctx context.Context) (uuid.UUID, order.State, error)
	GetState(ctx context.Context, id uuid.UUID) (order.State, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error

	SetTokenInput(ctx context.Context, id uuid.UUID, value string) (order.State, error)
	ApplyToken(ctx context.Context, id uuid.UUID) (order.State, error)
	SetPhone(ctx context.Context, id uuid.UUID, value string) (order.State, error)
	SetComment(ctx context.Context, id uuid.UUID, value string) (order.State, error)
	SetProductSearch(ctx context.Context, id uuid.UUID, value string) (order.State, error)
	SetSelection(ctx context.Context, id uuid.UUID, sel order.Selection, value *int64) (order.State, error)
	SelectClient(ctx context.Context, id uuid.UUID, clientID int64) (order.State, error)
	AddProduct(ctx context.Context, id uuid.UUID, productID int64) (order.State, error)
	UpdateItem(ctx context.Context, id uuid.UUID, productID int64, field order.ItemField, value float64) (order.State, error)
	RemoveItem(ctx context.Context, id uuid.UUID, productID int64) (order.State, error)
	ResetForm(ctx context.Context, id uuid.UUID) (order.State, error)

	Clients(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Contragent], error)
	Payboxes(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Paybox], error)
	Organizations(ctx context.Context, id uuid.UUID) (Lookup[NamedOrganization], error)
	Warehouses(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Warehouse], error)
	PriceTypes(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.PriceType], error)
	Products(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Product], error)

	Submit(ctx context.Context, id uuid.UUID, commit bool) (json.RawMessage, error)
}

type service struct {
	catalog  tablecrm.Catalog
	sales    tablecrm.SaleCreator
	sessions *session.Registry
	opts     Options
}

func NewService(catalog tablecrm.Catalog, sales tablecrm.SaleCreator, sessions *session.Registry, opts Options) Service {
	if opts.MinPhoneLength <= 0 {
		opts.MinPhoneLength = DefaultMinPhoneLength
	}
	if opts.MinSearchLength <= 0 {
		opts.MinSearchLength = DefaultMinSearchLength
	}
	if opts.ProductLimit <= 0 {
		opts.ProductLimit = tablecrm.DefaultProductLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &service{
		catalog:  catalog,
		sales:    sales,
		sessions: sessions,
		opts:     opts,
	}
}

func (s *service) CreateSession(ctx context.Context) (uuid.UUID, order.State, error) {
	sess, err := s.sessions.Create()
	if err != nil {
		return uuid.Nil, order.State{}, fmt.Errorf("service: failed to create session: %w", err)
	}
	return sess.ID, sess.Store.Snapshot(), nil
}

func (s *service) GetState(ctx context.Context, id uuid.UUID) (order.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return order.State{}, err
	}
	return sess.Store.Snapshot(), nil
}

func (s *service) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return s.sessions.Delete(id)
}

func (s *service) mutate(id uuid.UUID, fn func(order.State) order.State) (order.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return order.State{}, err
	}
	return sess.Store.Apply(fn), nil
}

func (s *service) SetTokenInput(ctx context.Context, id uuid.UUID, value string) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.SetTokenInput(value) })
}

func (s *service) ApplyToken(ctx context.Context, id uuid.UUID) (order.State, error) {
	st, err := s.mutate(id, order.State.ApplyToken)
	if err == nil {
		log.Info().Stringer("session_id", id).Bool("authenticated", st.Token != "").Msg("service: token applied")
	}
	return st, err
}

func (s *service) SetPhone(ctx context.Context, id uuid.UUID, value string) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.SetPhone(value) })
}

func (s *service) SetComment(ctx context.Context, id uuid.UUID, value string) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.SetComment(value) })
}

func (s *service) SetProductSearch(ctx context.Context, id uuid.UUID, value string) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.SetProductSearch(value) })
}

func (s *service) SetSelection(ctx context.Context, id uuid.UUID, sel order.Selection, value *int64) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.SetSelection(sel, value) })
}

// SelectClient picks a client from the session's last client list. When
// no phone has been typed yet, the client's phone is copied into the form.
func (s *service) SelectClient(ctx context.Context, id uuid.UUID, clientID int64) (order.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return order.State{}, err
	}

	var client *tablecrm.Contragent
	for _, c := range sess.Clients().Items {
		if c.ID == clientID {
			client = &c
			break
		}
	}
	if client == nil {
		log.Warn().Stringer("session_id", id).Int64("client_id", clientID).Msg("service: client not found in current list")
		return order.State{}, ErrUnknownClient
	}

	return sess.Store.Apply(func(st order.State) order.State {
		st = st.SetSelection(order.SelectClient, &client.ID)
		if st.Phone == "" && client.Phone != "" {
			st = st.SetPhone(client.Phone)
		}
		return st
	}), nil
}

// AddProduct adds one unit of a product from the session's last product list.
func (s *service) AddProduct(ctx context.Context, id uuid.UUID, productID int64) (order.State, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return order.State{}, err
	}

	for _, p := range sess.Products().Items {
		if p.ID == productID {
			return sess.Store.Apply(func(st order.State) order.State { return st.AddProduct(p) }), nil
		}
	}
	log.Warn().Stringer("session_id", id).Int64("product_id", productID).Msg("service: product not found in current list")
	return order.State{}, ErrUnknownProduct
}

func (s *service) UpdateItem(ctx context.Context, id uuid.UUID, productID int64, field order.ItemField, value float64) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.UpdateItem(productID, field, value) })
}

func (s *service) RemoveItem(ctx context.Context, id uuid.UUID, productID int64) (order.State, error) {
	return s.mutate(id, func(st order.State) order.State { return st.RemoveItem(productID) })
}

func (s *service) ResetForm(ctx context.Context, id uuid.UUID) (order.State, error) {
	return s.mutate(id, order.State.Reset)
}

// Submit assembles the sale from the session's form and sends it. The form
// is reset only after the API accepted the document.
func (s *service) Submit(ctx context.Context, id uuid.UUID, commit bool) (json.RawMessage, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	if !sess.BeginSubmit() {
		log.Warn().Stringer("session_id", id).Msg("service: submission already in flight")
		return nil, ErrSubmissionInFlight
	}
	defer sess.EndSubmit()

	st := sess.Store.Snapshot()
	if st.Token == "" {
		return nil, ErrTokenRequired
	}

	doc, err := order.Assemble(st, commit, s.opts.Now())
	if err != nil {
		log.Warn().Err(err).Stringer("session_id", id).Msg("service: sale is incomplete")
		return nil, err
	}

	resp, err := s.sales.CreateSale(ctx, st.Token, doc)
	if err != nil {
		log.Error().Err(err).Stringer("session_id", id).Bool("commit", commit).Msg("service: failed to create sale")
		return nil, fmt.Errorf("service: failed to create sale: %w", err)
	}

	sess.Store.Apply(order.State.Reset)
	log.Info().
		Stringer("session_id", id).
		Bool("commit", commit).
		Int("goods", len(doc.Goods)).
		Float64("paid", doc.PaidRubles).
		Msg("service: sale submitted, form reset")
	return resp, nil
}

func longEnough(s string, n int) bool {
	return utf8.RuneCountInString(s) >= n
}
