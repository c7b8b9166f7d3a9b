package form_test

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/Wordite/tablecrm-t/internal/tablecrm"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FetchClients(ctx context.Context, token, phone string) ([]tablecrm.Contragent, error) {
	args := m.Called(ctx, token, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.Contragent), args.Error(1)
}

func (m *MockCatalog) FetchPayboxes(ctx context.Context, token string) ([]tablecrm.Paybox, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.Paybox), args.Error(1)
}

func (m *MockCatalog) FetchOrganizations(ctx context.Context, token string) ([]tablecrm.Organization, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.Organization), args.Error(1)
}

func (m *MockCatalog) FetchWarehouses(ctx context.Context, token string) ([]tablecrm.Warehouse, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.Warehouse), args.Error(1)
}

func (m *MockCatalog) FetchPriceTypes(ctx context.Context, token string) ([]tablecrm.PriceType, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.PriceType), args.Error(1)
}

func (m *MockCatalog) FetchProducts(ctx context.Context, token, search string, limit int) ([]tablecrm.Product, error) {
	args := m.Called(ctx, token, search, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]tablecrm.Product), args.Error(1)
}

type MockSaleCreator struct {
	mock.Mock
}

func (m *MockSaleCreator) CreateSale(ctx context.Context, token string, doc tablecrm.SaleDocument) (json.RawMessage, error) {
	args := m.Called(ctx, token, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}
