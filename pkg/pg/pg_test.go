package pg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type txProbeRow struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"column:name"`
}

func (txProbeRow) TableName() string {
	return "tx_probe_rows"
}

func newTestDB(t *testing.T) *DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// A single connection makes a second BEGIN block forever, so any
	// nested call that opens its own transaction fails the test by timeout.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gormDB.AutoMigrate(&txProbeRow{}))

	return &DB{read: gormDB, write: gormDB}
}

func countRows(t *testing.T, db *DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Write(context.Background()).Model(&txProbeRow{}).Count(&n).Error)
	return n
}

func TestWithinTransaction_NestedCallJoinsOuter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := db.Write(ctx).Create(&txProbeRow{Name: "outer"}).Error; err != nil {
			return err
		}
		return db.WithinTransaction(ctx, func(ctx context.Context) error {
			return db.Write(ctx).Create(&txProbeRow{Name: "inner"}).Error
		})
	})

	require.NoError(t, err)
	assert.Equal(t, int64(2), countRows(t, db))
}

func TestWithinTransaction_OuterErrorRollsBackNestedWrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("admission failed")

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			return db.Write(ctx).Create(&txProbeRow{Name: "inner"}).Error
		}); err != nil {
			return err
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countRows(t, db))
}

func TestWithinTransaction_InnerErrorRollsBackEverything(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	boom := errors.New("inner failed")

	err := db.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := db.Write(ctx).Create(&txProbeRow{Name: "outer"}).Error; err != nil {
			return err
		}
		return db.WithinTransaction(ctx, func(ctx context.Context) error {
			return boom
		})
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), countRows(t, db))
}
