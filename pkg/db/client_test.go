package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/auricjewels/auric-backend/pkg/db/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := "file:dbclient_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Pincode{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return FromGorm(conn)
}

func TestWithTxCommits(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&models.Pincode{Code: "560001", City: "Bengaluru", State: "Karnataka"}).Error
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	var count int64
	if err := client.DB().Model(&models.Pincode{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	sentinel := errors.New("boom")
	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&models.Pincode{Code: "110001", City: "New Delhi", State: "Delhi"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	var count int64
	if err := client.DB().Model(&models.Pincode{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected rollback, got %d rows", count)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	row := models.Pincode{Code: "400001", City: "Mumbai", State: "Maharashtra"}
	if err := client.DB().Create(&row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := client.DB().Create(&models.Pincode{Code: "400001", City: "Mumbai", State: "Maharashtra"}).Error
	if err == nil {
		t.Fatal("expected duplicate error")
	}
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
