package ports

import (
	"time"

	"github.com/bnema/tenantctl/internal/domain"
)

type Metrics interface {
	ObserveAcquire(outcome string, wait time.Duration)
	SetInUse(n int)
	ObserveAction(action string, status domain.ResultStatus, kind domain.FailureKind, elapsed time.Duration)
	ObservePersist(outcome string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveAcquire(string, time.Duration) {}

func (NopMetrics) SetInUse(int) {}

func (NopMetrics) ObserveAction(string, domain.ResultStatus, domain.FailureKind, time.Duration) {}

func (NopMetrics) ObservePersist(string) {}
