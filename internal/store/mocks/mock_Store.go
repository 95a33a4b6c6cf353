// Package mocks provides test doubles for the store package.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/sales-etl/internal/model"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// EnsureSchema provides a mock function with given fields: ctx
func (_m *MockStore) EnsureSchema(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for EnsureSchema")
	}

	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		return rf(ctx)
	}
	return ret.Error(0)
}

// Upsert provides a mock function with given fields: ctx, records
func (_m *MockStore) Upsert(ctx context.Context, records []model.EnrichedSalesRecord) (int64, error) {
	ret := _m.Called(ctx, records)

	if len(ret) == 0 {
		panic("no return value specified for Upsert")
	}

	if rf, ok := ret.Get(0).(func(context.Context, []model.EnrichedSalesRecord) (int64, error)); ok {
		return rf(ctx, records)
	}
	return ret.Get(0).(int64), ret.Error(1)
}

// CountRecords provides a mock function with given fields: ctx
func (_m *MockStore) CountRecords(ctx context.Context) (int64, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for CountRecords")
	}

	return ret.Get(0).(int64), ret.Error(1)
}

// TotalSalesByRegion provides a mock function with given fields: ctx
func (_m *MockStore) TotalSalesByRegion(ctx context.Context) ([]model.RegionTotal, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for TotalSalesByRegion")
	}

	var r0 []model.RegionTotal
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.RegionTotal)
	}
	return r0, ret.Error(1)
}

// AverageSalesPerTransaction provides a mock function with given fields: ctx
func (_m *MockStore) AverageSalesPerTransaction(ctx context.Context) (*float64, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for AverageSalesPerTransaction")
	}

	var r0 *float64
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*float64)
	}
	return r0, ret.Error(1)
}

// CheckDuplicates provides a mock function with given fields: ctx
func (_m *MockStore) CheckDuplicates(ctx context.Context) ([]model.DuplicateKey, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for CheckDuplicates")
	}

	var r0 []model.DuplicateKey
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.DuplicateKey)
	}
	return r0, ret.Error(1)
}

// Rows provides a mock function with given fields: ctx
func (_m *MockStore) Rows(ctx context.Context) ([]model.EnrichedSalesRecord, error) {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Rows")
	}

	var r0 []model.EnrichedSalesRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.EnrichedSalesRecord)
	}
	return r0, ret.Error(1)
}

// Table provides a mock function with given fields:
func (_m *MockStore) Table() string {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Table")
	}

	return ret.String(0)
}

// Close provides a mock function with given fields:
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}

	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	mock := &MockStore{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
