// Package adapters reads typed application properties.
package adapters

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatcher/internal/platform/store"
)

// LastTradeDate names the trade date the daily summary job aggregates.
const LastTradeDate = "last_trade_date"

// PropertyModel holds one named value. Exactly one typed column is set; the
// others are NULL.
type PropertyModel struct {
	Name           string `gorm:"primaryKey;size:128"`
	BoolValue      *bool
	IntValue       *int32
	LongValue      *int64
	TimestampValue *time.Time
	FloatValue     *float32
	DoubleValue    *float64
	DecimalValue   decimal.NullDecimal `gorm:"type:numeric(20,6)"`
	UUIDValue      *uuid.UUID          `gorm:"type:uuid"`
	StringValue    *string             `gorm:"type:text"`
}

func (PropertyModel) TableName() string {
	return "application_properties"
}

// Models lists the property tables for migration.
func Models() []interface{} {
	return []interface{}{&PropertyModel{}}
}

type PropertyRepository struct {
	exec *store.Executor
}

func NewPropertyRepository(exec *store.Executor) *PropertyRepository {
	return &PropertyRepository{exec: exec}
}

func (r *PropertyRepository) load(ctx context.Context, op, name string, opts ...store.Option) (PropertyModel, error) {
	if strings.TrimSpace(name) == "" {
		return PropertyModel{}, store.Errorf(op, store.ErrInvalidArgument, "property name is empty")
	}
	return store.Query(ctx, r.exec, op, func(tx *gorm.DB) (PropertyModel, error) {
		var m PropertyModel
		err := tx.Where("name = ?", name).Take(&m).Error
		return m, err
	}, opts...)
}

func mismatch(op, name, want string) error {
	return store.Errorf(op, store.ErrTypeMismatch, "property %q is not a %s", name, want)
}

func (r *PropertyRepository) Bool(ctx context.Context, name string, opts ...store.Option) (bool, error) {
	const op = "properties.Bool"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return false, err
	}
	if m.BoolValue == nil {
		return false, mismatch(op, name, "boolean")
	}
	return *m.BoolValue, nil
}

func (r *PropertyRepository) Int(ctx context.Context, name string, opts ...store.Option) (int32, error) {
	const op = "properties.Int"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return 0, err
	}
	if m.IntValue == nil {
		return 0, mismatch(op, name, "int")
	}
	return *m.IntValue, nil
}

func (r *PropertyRepository) Long(ctx context.Context, name string, opts ...store.Option) (int64, error) {
	const op = "properties.Long"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return 0, err
	}
	if m.LongValue == nil {
		return 0, mismatch(op, name, "long")
	}
	return *m.LongValue, nil
}

// Timestamp returns the value in UTC.
func (r *PropertyRepository) Timestamp(ctx context.Context, name string, opts ...store.Option) (time.Time, error) {
	const op = "properties.Timestamp"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return time.Time{}, err
	}
	if m.TimestampValue == nil {
		return time.Time{}, mismatch(op, name, "timestamp")
	}
	return m.TimestampValue.UTC(), nil
}

func (r *PropertyRepository) Float(ctx context.Context, name string, opts ...store.Option) (float32, error) {
	const op = "properties.Float"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return 0, err
	}
	if m.FloatValue == nil {
		return 0, mismatch(op, name, "float")
	}
	return *m.FloatValue, nil
}

func (r *PropertyRepository) Double(ctx context.Context, name string, opts ...store.Option) (float64, error) {
	const op = "properties.Double"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return 0, err
	}
	if m.DoubleValue == nil {
		return 0, mismatch(op, name, "double")
	}
	return *m.DoubleValue, nil
}

func (r *PropertyRepository) Decimal(ctx context.Context, name string, opts ...store.Option) (decimal.Decimal, error) {
	const op = "properties.Decimal"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return decimal.Zero, err
	}
	if !m.DecimalValue.Valid {
		return decimal.Zero, mismatch(op, name, "decimal")
	}
	return m.DecimalValue.Decimal, nil
}

func (r *PropertyRepository) UUID(ctx context.Context, name string, opts ...store.Option) (uuid.UUID, error) {
	const op = "properties.UUID"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	if m.UUIDValue == nil {
		return uuid.Nil, mismatch(op, name, "uuid")
	}
	return *m.UUIDValue, nil
}

func (r *PropertyRepository) String(ctx context.Context, name string, opts ...store.Option) (string, error) {
	const op = "properties.String"
	m, err := r.load(ctx, op, name, opts...)
	if err != nil {
		return "", err
	}
	if m.StringValue == nil {
		return "", mismatch(op, name, "string")
	}
	return *m.StringValue, nil
}

// SetTimestamp stores t under name, replacing any previous value of any type.
func (r *PropertyRepository) SetTimestamp(ctx context.Context, name string, t time.Time, opts ...store.Option) error {
	const op = "properties.SetTimestamp"
	if strings.TrimSpace(name) == "" {
		return store.Errorf(op, store.ErrInvalidArgument, "property name is empty")
	}
	ts := t.UTC()
	m := PropertyModel{Name: name, TimestampValue: &ts}
	return r.exec.Exec(ctx, op, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			UpdateAll: true,
		}).Create(&m).Error
	}, opts...)
}
