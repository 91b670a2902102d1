// Package job contains the periodic background tasks of the usage API.
package job

import (
	"github.com/mhsanaei/3x-ui-usage/database"
	"github.com/mhsanaei/3x-ui-usage/logger"
	"github.com/mhsanaei/3x-ui-usage/util/common"

	"go.uber.org/atomic"
	"gorm.io/gorm"
)

// CheckDatabaseJob verifies that the panel database still exposes the tables the
// lookup joins. It only logs; requests keep failing or succeeding on their own.
type CheckDatabaseJob struct {
	db *gorm.DB

	healthy *atomic.Bool
}

func NewCheckDatabaseJob(db *gorm.DB) *CheckDatabaseJob {
	return &CheckDatabaseJob{db: db, healthy: atomic.NewBool(true)}
}

func (j *CheckDatabaseJob) Run() {
	defer common.Recover("check database job")

	err := database.CheckSchema(j.db)
	if err == nil {
		if !j.healthy.Swap(true) {
			logger.Info("panel database is reachable again")
		}
		return
	}
	if j.healthy.Swap(false) {
		logger.Warning("panel database check failed:", err)
	}
}

// Healthy reports the result of the last run.
func (j *CheckDatabaseJob) Healthy() bool {
	return j.healthy.Load()
}
