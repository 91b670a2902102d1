// Package service implements the traffic lookup and speed-test logic behind the API.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"
	"github.com/mhsanaei/3x-ui-usage/web/entity"

	"gorm.io/gorm"
)

const trafficQuery = `
SELECT
	u.id, u.uuid, u.email AS username, u.enable,
	i.remark AS inbound,
	c.up AS upload, c.down AS download,
	u.expiry_time
FROM users u
JOIN inbounds i ON u.inbound_id = i.id
JOIN client_traffics c ON u.id = c.user_id
WHERE `

var trafficColumns = []string{"id", "uuid", "username", "enable", "inbound", "upload", "download", "expiry_time"}

// trafficRow is the typed projection of trafficQuery.
type trafficRow struct {
	ID         int
	UUID       string
	Username   string
	Enable     sql.NullBool
	Inbound    sql.NullString
	Upload     sql.NullInt64
	Download   sql.NullInt64
	ExpiryTime sql.NullInt64
}

// TrafficService looks up a user's traffic counters and shapes them into entity.UserTraffic.
type TrafficService struct {
	db       *gorm.DB
	location *time.Location

	// Now is the clock used for the expiry comparison.
	Now func() time.Time
}

// NewTrafficService returns a service reading from db. A nil location means time.Local.
func NewTrafficService(db *gorm.DB, location *time.Location) *TrafficService {
	if location == nil {
		location = time.Local
	}
	return &TrafficService{db: db, location: location, Now: time.Now}
}

// GetByUUID returns the traffic of the user with the given UUID, or nil if there is none.
func (s *TrafficService) GetByUUID(ctx context.Context, uuid string) (*entity.UserTraffic, error) {
	return s.lookup(ctx, "u.uuid = ?", uuid)
}

// GetByUsername returns the traffic of the user with the given email, or nil if there is none.
func (s *TrafficService) GetByUsername(ctx context.Context, username string) (*entity.UserTraffic, error) {
	return s.lookup(ctx, "u.email = ?", username)
}

func (s *TrafficService) lookup(ctx context.Context, where string, identifier string) (*entity.UserTraffic, error) {
	if identifier == "" {
		return nil, common.ErrEmptyIdentifier
	}
	if s.db == nil {
		return nil, common.NewLookupError("connect", fmt.Errorf("database is not initialized"))
	}

	var (
		row   trafficRow
		found bool
	)
	// Connection pins one pooled connection for the callback and always returns it.
	err := s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		var err error
		found, err = queryTraffic(conn, where, identifier, &row)
		return err
	})
	if err != nil {
		logger.Warningf("traffic lookup (%s) failed: %v", where, err)
		return nil, common.NewLookupError("query traffic", err)
	}
	if !found {
		return nil, nil
	}
	return s.toUserTraffic(&row), nil
}

func queryTraffic(conn *gorm.DB, where string, identifier string, row *trafficRow) (bool, error) {
	rows, err := conn.Raw(trafficQuery+where+" LIMIT 1", identifier).Rows()
	if err != nil {
		return false, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return false, err
	}
	for _, col := range trafficColumns {
		if !slices.Contains(columns, col) {
			return false, fmt.Errorf("expected column %q missing from result", col)
		}
	}

	if !rows.Next() {
		return false, rows.Err()
	}
	dest := map[string]any{
		"id":          &row.ID,
		"uuid":        &row.UUID,
		"username":    &row.Username,
		"enable":      &row.Enable,
		"inbound":     &row.Inbound,
		"upload":      &row.Upload,
		"download":    &row.Download,
		"expiry_time": &row.ExpiryTime,
	}
	targets := make([]any, len(columns))
	for i, col := range columns {
		if target, ok := dest[col]; ok {
			targets[i] = target
		} else {
			targets[i] = new(any)
		}
	}
	if err := rows.Scan(targets...); err != nil {
		return false, err
	}
	return true, rows.Err()
}

func (s *TrafficService) toUserTraffic(row *trafficRow) *entity.UserTraffic {
	upload := row.Upload.Int64
	download := row.Download.Int64
	uploadGB := common.BytesToGB(upload)
	downloadGB := common.BytesToGB(download)

	traffic := &entity.UserTraffic{
		Username:   row.Username,
		UUID:       row.UUID,
		Upload:     upload,
		Download:   download,
		Total:      upload + download,
		UploadGB:   common.Round2(uploadGB),
		DownloadGB: common.Round2(downloadGB),
		TotalGB:    common.Round2(uploadGB + downloadGB),
		Inbound:    row.Inbound.String,
		Status:     entity.StatusActive,
	}

	if row.ExpiryTime.Valid && row.ExpiryTime.Int64 != 0 {
		expiry := time.UnixMilli(row.ExpiryTime.Int64).In(s.location)
		if s.Now().After(expiry) {
			traffic.Status = entity.StatusExpired
		}
		traffic.ExpiryTime = expiry.Format(time.RFC3339)
	}

	logger.Debugf("traffic for %s: %s total, status %s", traffic.Username, common.FormatTraffic(traffic.Total), traffic.Status)
	return traffic
}
