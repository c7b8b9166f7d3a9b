package form

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/order"
	"github.com/Wordite/tablecrm-t/internal/session"
	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

// lookupKey identifies the inputs a lookup was made for. The token is part
// of the key but never of the Query shown to callers.
type lookupKey struct {
	token string
	query string
}

type lookupDef[T any] struct {
	name    string
	key     func(order.State) lookupKey
	enabled func(order.State) bool
	fetch   func(ctx context.Context, st order.State) ([]T, error)
	record  func(sess *session.Session, query string, items []T, current func() bool) bool
}

func runLookup[T any](ctx context.Context, s *service, id uuid.UUID, def lookupDef[T]) (Lookup[T], error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return Lookup[T]{}, err
	}

	st := sess.Store.Snapshot()
	key := def.key(st)
	res := Lookup[T]{Query: key.query, Items: []T{}}
	if st.Token == "" || (def.enabled != nil && !def.enabled(st)) {
		return res, nil
	}
	res.Enabled = true

	items, err := def.fetch(ctx, st)
	if err != nil {
		log.Error().Err(err).Stringer("session_id", id).Str("lookup", def.name).Msg("service: lookup failed")
		return Lookup[T]{}, fmt.Errorf("service: failed to fetch %s: %w", def.name, err)
	}
	if items != nil {
		res.Items = items
	}

	// Inputs may have moved on while the request was in flight.
	current := func() bool { return def.key(sess.Store.Snapshot()) == key }
	var fresh bool
	if def.record != nil {
		fresh = def.record(sess, key.query, res.Items, current)
	} else {
		fresh = current()
	}
	if !fresh {
		log.Debug().Stringer("session_id", id).Str("lookup", def.name).Str("query", key.query).Msg("service: discarding stale lookup")
		res.Stale = true
	}
	return res, nil
}

func tokenKey(path string) func(order.State) lookupKey {
	return func(st order.State) lookupKey {
		return lookupKey{token: st.Token, query: path}
	}
}

func (s *service) Clients(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Contragent], error) {
	return runLookup(ctx, s, id, lookupDef[tablecrm.Contragent]{
		name: "clients",
		key: func(st order.State) lookupKey {
			return lookupKey{token: st.Token, query: tablecrm.ClientsPath(st.Phone)}
		},
		enabled: func(st order.State) bool {
			return longEnough(st.Phone, s.opts.MinPhoneLength)
		},
		fetch: func(ctx context.Context, st order.State) ([]tablecrm.Contragent, error) {
			return s.catalog.FetchClients(ctx, st.Token, st.Phone)
		},
		record: (*session.Session).SetClientsIf,
	})
}

func (s *service) Payboxes(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Paybox], error) {
	return runLookup(ctx, s, id, lookupDef[tablecrm.Paybox]{
		name: "payboxes",
		key:  tokenKey(tablecrm.PathPayboxes),
		fetch: func(ctx context.Context, st order.State) ([]tablecrm.Paybox, error) {
			return s.catalog.FetchPayboxes(ctx, st.Token)
		},
	})
}

func (s *service) Organizations(ctx context.Context, id uuid.UUID) (Lookup[NamedOrganization], error) {
	return runLookup(ctx, s, id, lookupDef[NamedOrganization]{
		name: "organizations",
		key:  tokenKey(tablecrm.PathOrganizations),
		fetch: func(ctx context.Context, st order.State) ([]NamedOrganization, error) {
			orgs, err := s.catalog.FetchOrganizations(ctx, st.Token)
			if err != nil {
				return nil, err
			}
			named := make([]NamedOrganization, 0, len(orgs))
			for _, org := range orgs {
				named = append(named, NamedOrganization{
					Organization: org,
					DisplayName:  tablecrm.OrganizationName(org),
				})
			}
			return named, nil
		},
	})
}

func (s *service) Warehouses(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Warehouse], error) {
	return runLookup(ctx, s, id, lookupDef[tablecrm.Warehouse]{
		name: "warehouses",
		key:  tokenKey(tablecrm.PathWarehouses),
		fetch: func(ctx context.Context, st order.State) ([]tablecrm.Warehouse, error) {
			return s.catalog.FetchWarehouses(ctx, st.Token)
		},
	})
}

func (s *service) PriceTypes(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.PriceType], error) {
	return runLookup(ctx, s, id, lookupDef[tablecrm.PriceType]{
		name: "price types",
		key:  tokenKey(tablecrm.PathPriceTypes),
		fetch: func(ctx context.Context, st order.State) ([]tablecrm.PriceType, error) {
			return s.catalog.FetchPriceTypes(ctx, st.Token)
		},
	})
}

func (s *service) Products(ctx context.Context, id uuid.UUID) (Lookup[tablecrm.Product], error) {
	return runLookup(ctx, s, id, lookupDef[tablecrm.Product]{
		name: "products",
		key: func(st order.State) lookupKey {
			return lookupKey{token: st.Token, query: tablecrm.ProductsPath(st.ProductSearch, s.opts.ProductLimit)}
		},
		enabled: func(st order.State) bool {
			return longEnough(st.ProductSearch, s.opts.MinSearchLength)
		},
		fetch: func(ctx context.Context, st order.State) ([]tablecrm.Product, error) {
			return s.catalog.FetchProducts(ctx, st.Token, st.ProductSearch, s.opts.ProductLimit)
		},
		record: (*session.Session).SetProductsIf,
	})
}
