package tablecrm

import (
	"context"
	"net/url"
	"strconv"
)

// DefaultProductLimit is the page size used for nomenclature searches.
const DefaultProductLimit = 50

// Catalog is the read side of the API: reference lists used to fill in a sale.
type Catalog interface {
	FetchClients(ctx context.Context, token, phone string) ([]Contragent, error)
	FetchPayboxes(ctx context.Context, token string) ([]Paybox, error)
	FetchOrganizations(ctx context.Context, token string) ([]Organization, error)
	FetchWarehouses(ctx context.Context, token string) ([]Warehouse, error)
	FetchPriceTypes(ctx context.Context, token string) ([]PriceType, error)
	FetchProducts(ctx context.Context, token, search string, limit int) ([]Product, error)
}

var _ Catalog = (*Client)(nil)

// ClientsPath returns the contragents path for a phone filter.
func ClientsPath(phone string) string {
	params := url.Values{}
	if phone != "" {
		params.Set("phone", phone)
	}
	return withQuery(PathContragents, params)
}

// ProductsPath returns the nomenclature path for a search text and page size.
func ProductsPath(search string, limit int) string {
	if limit <= 0 {
		limit = DefaultProductLimit
	}
	params := url.Values{}
	if search != "" {
		params.Set("search", search)
	}
	params.Set("limit", strconv.Itoa(limit))
	return withQuery(PathNomenclature, params)
}

func withQuery(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

func (c *Client) FetchClients(ctx context.Context, token, phone string) ([]Contragent, error) {
	return fetchList[Contragent](ctx, c, ClientsPath(phone), token)
}

func (c *Client) FetchPayboxes(ctx context.Context, token string) ([]Paybox, error) {
	return fetchList[Paybox](ctx, c, PathPayboxes, token)
}

func (c *Client) FetchOrganizations(ctx context.Context, token string) ([]Organization, error) {
	return fetchList[Organization](ctx, c, PathOrganizations, token)
}

func (c *Client) FetchWarehouses(ctx context.Context, token string) ([]Warehouse, error) {
	return fetchList[Warehouse](ctx, c, PathWarehouses, token)
}

func (c *Client) FetchPriceTypes(ctx context.Context, token string) ([]PriceType, error) {
	return fetchList[PriceType](ctx, c, PathPriceTypes, token)
}

func (c *Client) FetchProducts(ctx context.Context, token, search string, limit int) ([]Product, error) {
	return fetchList[Product](ctx, c, ProductsPath(search, limit), token)
}

func fetchList[T any](ctx context.Context, c *Client, path, token string) ([]T, error) {
	body, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[T](body)
}
