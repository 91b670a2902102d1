// Package controller provides the HTTP handlers of the usage API.
package controller

import (
	"context"

	"github.com/mhsanaei/3x-ui-usage/web/entity"
)

// TrafficLookup is the part of service.TrafficService the handlers use.
type TrafficLookup interface {
	GetByUUID(ctx context.Context, uuid string) (*entity.UserTraffic, error)
	GetByUsername(ctx context.Context, username string) (*entity.UserTraffic, error)
}

// DatabaseHealth reports the outcome of the last periodic storage check.
type DatabaseHealth interface {
	Healthy() bool
}

// SpeedTester is the part of service.SpeedTestService the handlers use.
type SpeedTester interface {
	Run(ctx context.Context) (*entity.SpeedTestResult, error)
}
