package database

import (
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/mhsanaei/3x-ui-usage/database/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockOptions controls CreateMockDB.
type MockOptions struct {
	Now       time.Time // reference time for expiry values, zero means time.Now()
	Extra     int       // additional random users on top of the four fixed ones
	Overwrite bool      // replace an existing file at the target path
}

// MockUser describes one of the fixed users seeded by CreateMockDB.
type MockUser struct {
	UUID  string
	Email string
	Note  string
}

// MockUsers are the fixed sample users, in insertion order.
var MockUsers = []MockUser{
	{UUID: "00000000-0000-0000-0000-000000000001", Email: "user1@example.com"},
	{UUID: "00000000-0000-0000-0000-000000000002", Email: "user2@example.com"},
	{UUID: "00000000-0000-0000-0000-000000000003", Email: "user3@example.com", Note: "expired"},
	{UUID: "00000000-0000-0000-0000-000000000004", Email: "user4@example.com", Note: "disabled"},
}

// CreateMockDB creates a development database with the panel tables and sample data.
// It is only used by the mockdb command and by tests.
func CreateMockDB(dbPath string, opts MockOptions) error {
	if _, err := os.Stat(dbPath); err == nil {
		if !opts.Overwrite {
			return fmt.Errorf("%s already exists", dbPath)
		}
		if err := os.Remove(dbPath); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), fs.ModePerm); err != nil {
		return err
	}

	conn, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := conn.AutoMigrate(&model.Inbound{}, &model.User{}, &model.ClientTraffic{}); err != nil {
		return err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	future := now.AddDate(0, 0, 30).UnixMilli()
	past := now.AddDate(0, 0, -5).UnixMilli()

	inbounds := []*model.Inbound{
		{Id: 1, Remark: "VLESS TCP"},
		{Id: 2, Remark: "Trojan WS"},
		{Id: 3, Remark: "VMess TCP"},
	}
	users := []*model.User{
		{Id: 1, InboundId: 1, UUID: MockUsers[0].UUID, Email: MockUsers[0].Email, Enable: true, ExpiryTime: &future},
		{Id: 2, InboundId: 2, UUID: MockUsers[1].UUID, Email: MockUsers[1].Email, Enable: true, ExpiryTime: &future},
		{Id: 3, InboundId: 3, UUID: MockUsers[2].UUID, Email: MockUsers[2].Email, Enable: true, ExpiryTime: &past},
		{Id: 4, InboundId: 1, UUID: MockUsers[3].UUID, Email: MockUsers[3].Email, Enable: false, ExpiryTime: &future},
	}
	traffics := []*model.ClientTraffic{
		{Id: 1, UserId: 1, Up: 5_000_000_000, Down: 10_000_000_000},
		{Id: 2, UserId: 2, Up: 2_500_000_000, Down: 7_500_000_000},
		{Id: 3, UserId: 3, Up: 15_000_000_000, Down: 25_000_000_000},
		{Id: 4, UserId: 4, Up: 500_000_000, Down: 1_500_000_000},
	}

	for i := 0; i < opts.Extra; i++ {
		id := len(users) + 1
		users = append(users, &model.User{
			Id:         id,
			InboundId:  inbounds[i%len(inbounds)].Id,
			UUID:       uuid.NewString(),
			Email:      fmt.Sprintf("user%d@example.com", id),
			Enable:     true,
			ExpiryTime: &future,
		})
		traffics = append(traffics, &model.ClientTraffic{
			Id:     id,
			UserId: id,
			Up:     rand.Int63n(50_000_000_000),
			Down:   rand.Int63n(200_000_000_000),
		})
	}

	return conn.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&inbounds).Error; err != nil {
			return err
		}
		if err := tx.Create(&users).Error; err != nil {
			return err
		}
		return tx.Create(&traffics).Error
	})
}
