package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

// Cached wraps a tablecrm.Catalog with a TTL cache. Keys are the exact
// request path plus token, so different filters or tokens never share data.
type Cached struct {
	next       tablecrm.Catalog
	cache      *Cache
	listTTL    time.Duration
	productTTL time.Duration
}

var _ tablecrm.Catalog = (*Cached)(nil)

// NewCached returns a caching catalog. listTTL applies to clients and the
// reference lists; productTTL to nomenclature searches (0 only de-duplicates).
func NewCached(next tablecrm.Catalog, cache *Cache, listTTL, productTTL time.Duration) *Cached {
	if cache == nil {
		cache = NewCache()
	}
	return &Cached{
		next:       next,
		cache:      cache,
		listTTL:    listTTL,
		productTTL: productTTL,
	}
}

func cacheKey(path, token string) string {
	return tablecrm.BuildTokenizedPath(path, token)
}

func cachedList[T any](ctx context.Context, c *Cached, path, token string, ttl time.Duration, fetch func(context.Context) ([]T, error)) ([]T, error) {
	v, err := c.cache.Load(ctx, cacheKey(path, token), ttl, func(ctx context.Context) (any, error) {
		log.Debug().Str("path", path).Msg("catalog: cache miss")
		return fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	items := v.([]T)
	// Callers get their own slice header; the backing entities are shared read-only.
	out := make([]T, len(items))
	copy(out, items)
	return out, nil
}

func (c *Cached) FetchClients(ctx context.Context, token, phone string) ([]tablecrm.Contragent, error) {
	return cachedList(ctx, c, tablecrm.ClientsPath(phone), token, c.listTTL, func(ctx context.Context) ([]tablecrm.Contragent, error) {
		return c.next.FetchClients(ctx, token, phone)
	})
}

func (c *Cached) FetchPayboxes(ctx context.Context, token string) ([]tablecrm.Paybox, error) {
	return cachedList(ctx, c, tablecrm.PathPayboxes, token, c.listTTL, func(ctx context.Context) ([]tablecrm.Paybox, error) {
		return c.next.FetchPayboxes(ctx, token)
	})
}

func (c *Cached) FetchOrganizations(ctx context.Context, token string) ([]tablecrm.Organization, error) {
	return cachedList(ctx, c, tablecrm.PathOrganizations, token, c.listTTL, func(ctx context.Context) ([]tablecrm.Organization, error) {
		return c.next.FetchOrganizations(ctx, token)
	})
}

func (c *Cached) FetchWarehouses(ctx context.Context, token string) ([]tablecrm.Warehouse, error) {
	return cachedList(ctx, c, tablecrm.PathWarehouses, token, c.listTTL, func(ctx context.Context) ([]tablecrm.Warehouse, error) {
		return c.next.FetchWarehouses(ctx, token)
	})
}

func (c *Cached) FetchPriceTypes(ctx context.Context, token string) ([]tablecrm.PriceType, error) {
	return cachedList(ctx, c, tablecrm.PathPriceTypes, token, c.listTTL, func(ctx context.Context) ([]tablecrm.PriceType, error) {
		return c.next.FetchPriceTypes(ctx, token)
	})
}

func (c *Cached) FetchProducts(ctx context.Context, token, search string, limit int) ([]tablecrm.Product, error) {
	return cachedList(ctx, c, tablecrm.ProductsPath(search, limit), token, c.productTTL, func(ctx context.Context) ([]tablecrm.Product, error) {
		return c.next.FetchProducts(ctx, token, search, limit)
	})
}
