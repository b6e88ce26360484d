// Package journal persists one row per order attempt.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"spotengine/internal/order"
)

// OrderRecord is the persisted form of an order outcome.
type OrderRecord struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	ClientOrderID   string          `gorm:"size:64;uniqueIndex"`
	Symbol          string          `gorm:"size:32;index"`
	Side            string          `gorm:"size:8"`
	RequestQuantity decimal.Decimal `gorm:"type:numeric"`
	RequestQuote    decimal.Decimal `gorm:"type:numeric"`
	Status          string          `gorm:"size:16;index"`
	ExchangeOrderID int64
	ExchangeStatus  string          `gorm:"size:32"`
	ExecutedQty     decimal.Decimal `gorm:"type:numeric"`
	QuoteQty        decimal.Decimal `gorm:"type:numeric"`
	Error           string          `gorm:"type:text"`
	LatencyMicros   int64
	CreatedAt       time.Time `gorm:"index"`
}

func (OrderRecord) TableName() string { return "order_journal" }

// NewRecord flattens an outcome into a row.
func NewRecord(o order.Outcome) OrderRecord {
	rec := OrderRecord{
		ClientOrderID:   o.Request.ClientOrderID,
		Symbol:          o.Request.Symbol,
		Side:            string(o.Request.Side),
		RequestQuantity: o.Request.Quantity,
		RequestQuote:    o.Request.QuoteOrderQty,
		Status:          o.Status.String(),
		ExchangeOrderID: o.Response.OrderID,
		ExchangeStatus:  o.Response.Status,
		ExecutedQty:     o.Response.ExecutedQty,
		QuoteQty:        o.Response.CummulativeQuoteQty,
		LatencyMicros:   o.Latency.Microseconds(),
		CreatedAt:       time.UnixMilli(o.Request.Timestamp).UTC(),
	}
	if o.Err != nil {
		rec.Error = o.Err.Error()
	}
	return rec
}

// Journal writes order outcomes to postgres.
type Journal struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Migrate creates or updates the journal table.
func (j *Journal) Migrate(ctx context.Context) error {
	if err := j.db.WithContext(ctx).AutoMigrate(&OrderRecord{}); err != nil {
		return errors.Wrap(err, "migrate order journal")
	}
	return nil
}

// ObserveOrder implements order.Observer. Write failures are logged, never
// propagated: the journal must not block trading.
func (j *Journal) ObserveOrder(ctx context.Context, o order.Outcome) {
	rec := NewRecord(o)
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		logs.Errorf("journal order %s, err: %+v", rec.ClientOrderID, err)
	}
}

func (r OrderRecord) String() string {
	line := fmt.Sprintf("%s %s %s %s", r.CreatedAt.Format(time.RFC3339), r.Side, r.Symbol, r.Status)
	if !r.ExecutedQty.IsZero() || !r.QuoteQty.IsZero() {
		line += fmt.Sprintf(" executed %s quote %s", r.ExecutedQty, r.QuoteQty)
	}
	if r.Error != "" {
		line += ": " + r.Error
	}
	return line
}

// Recent returns the latest n rows, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]OrderRecord, error) {
	var rows []OrderRecord
	err := j.db.WithContext(ctx).Order("id desc").Limit(n).Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "query order journal").With("limit", n)
	}
	return rows, nil
}
