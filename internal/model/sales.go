package model

import "math"

// Region labels the regional source a sales record was extracted from.
type Region string

// Default region labels for the two sources.
const (
	RegionA Region = "A"
	RegionB Region = "B"
)

// SalesRecord is one line item as read from a regional CSV file.
type SalesRecord struct {
	OrderID           int64   `json:"order_id" yaml:"order_id" csv:"order_id"`
	OrderItemID       int64   `json:"order_item_id" yaml:"order_item_id" csv:"order_item_id"`
	QuantityOrdered   int64   `json:"quantity_ordered" yaml:"quantity_ordered" csv:"quantity_ordered"`
	ItemPrice         float64 `json:"item_price" yaml:"item_price" csv:"item_price"`
	PromotionDiscount float64 `json:"promotion_discount" yaml:"promotion_discount" csv:"promotion_discount"`
	Region            Region  `json:"region" yaml:"region" csv:"region"`
}

// EnrichedSalesRecord is a SalesRecord with its derived financial metrics.
type EnrichedSalesRecord struct {
	SalesRecord `yaml:",inline"`
	TotalSales  float64 `json:"total_sales" yaml:"total_sales" csv:"total_sales"`
	NetSale     float64 `json:"net_sale" yaml:"net_sale" csv:"net_sale"`
}

// Enrich derives total_sales and net_sale for r.
//
//	total_sales = quantity_ordered * item_price
//	net_sale    = total_sales - promotion_discount
func Enrich(r SalesRecord) EnrichedSalesRecord {
	total := float64(r.QuantityOrdered) * r.ItemPrice
	return EnrichedSalesRecord{
		SalesRecord: r,
		TotalSales:  total,
		NetSale:     total - r.PromotionDiscount,
	}
}

// Finite reports whether both derived metrics are finite numbers.
func (e EnrichedSalesRecord) Finite() bool {
	return !math.IsNaN(e.TotalSales) && !math.IsInf(e.TotalSales, 0) &&
		!math.IsNaN(e.NetSale) && !math.IsInf(e.NetSale, 0)
}

// Values returns the record's column values in SalesColumns order.
func (e EnrichedSalesRecord) Values() []any {
	return []any{
		e.OrderID,
		e.OrderItemID,
		e.QuantityOrdered,
		e.ItemPrice,
		e.PromotionDiscount,
		string(e.Region),
		e.TotalSales,
		e.NetSale,
	}
}

// SalesColumns lists the persisted columns of the sales table, primary key first.
var SalesColumns = []string{
	"order_id",
	"order_item_id",
	"quantity_ordered",
	"item_price",
	"promotion_discount",
	"region",
	"total_sales",
	"net_sale",
}

// SalesPrimaryKey is the primary-key column of the sales table.
const SalesPrimaryKey = "order_id"

// RegionTotal is the sum of total_sales for one region.
type RegionTotal struct {
	Region     Region  `json:"region" yaml:"region"`
	TotalSales float64 `json:"total_sales" yaml:"total_sales"`
}

// DuplicateKey is an order_id that appears more than once in the sales table.
type DuplicateKey struct {
	OrderID int64 `json:"order_id" yaml:"order_id"`
	Count   int64 `json:"count" yaml:"count"`
}
