package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/waveline/campaign-engine/internal/model"
	"github.com/waveline/campaign-engine/internal/repository"
	"github.com/waveline/campaign-engine/pkg/pg"
	"github.com/waveline/campaign-engine/pkg/redis"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.CreditBalanceEntity{},
		&repository.ContactEntity{},
		&repository.TemplateEntity{},
		&repository.CampaignEntity{},
		&repository.TriggerEntity{},
		&repository.RecipientEntity{},
		&repository.SendEntity{},
		&repository.DeliveryStateEntity{},
		&repository.ClickEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestCredit(t *testing.T, db *pg.DB, tenantID, remaining int64) {
	ctx := context.Background()
	balance := &repository.CreditBalanceEntity{
		TenantID:  tenantID,
		Remaining: remaining,
	}
	err := db.Write(ctx).Create(balance).Error
	require.NoError(t, err)
}

func CreateTestTemplate(t *testing.T, db *pg.DB, tenantID int64, name, body string, buttons ...model.TemplateButton) *repository.TemplateEntity {
	ctx := context.Background()
	tmpl := &repository.TemplateEntity{
		TenantID: tenantID,
		Name:     name,
		Language: "en",
		Body:     body,
		Buttons:  buttons,
		Status:   string(model.TemplateStatusApproved),
	}
	err := db.Write(ctx).Create(tmpl).Error
	require.NoError(t, err)
	return tmpl
}

func CreateTestContact(t *testing.T, db *pg.DB, tenantID int64, phone string) *repository.ContactEntity {
	ctx := context.Background()
	contact := &repository.ContactEntity{
		TenantID: tenantID,
		Phone:    phone,
		Source:   "manual",
	}
	err := db.Write(ctx).Create(contact).Error
	require.NoError(t, err)
	return contact
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
