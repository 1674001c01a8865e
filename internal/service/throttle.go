// internal/service/throttle.go
package service

import "github.com/funilzap/crm-backend/internal/model"

const (
	riskItemCount    = 500
	riskMaxPerMinute = 60
	riskMaxPerHour   = 1500
	riskMinDelayMs   = 800
)

// ComputeMinDelay returns the enforced per-message wait in milliseconds: the
// largest of the operator's floor delay and the delays implied by the
// per-minute and per-hour caps. Non-positive caps fall back to the full
// window, matching a cap of one message per window.
func ComputeMinDelay(delayMs, maxPerMinute, maxPerHour int) int {
	rateDelay := 60000
	if maxPerMinute > 0 {
		rateDelay = ceilDiv(60000, maxPerMinute)
	}
	hourDelay := 3600000
	if maxPerHour > 0 {
		hourDelay = ceilDiv(3600000, maxPerHour)
	}

	min := delayMs
	if rateDelay > min {
		min = rateDelay
	}
	if hourDelay > min {
		min = hourDelay
	}
	if min < 0 {
		min = 0
	}
	return min
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// ShowRiskWarning flags configurations likely to trip abuse detection on the
// messaging channel. Advisory only, never blocks a run.
func ShowRiskWarning(itemCount int, t model.Throttling) bool {
	if itemCount > riskItemCount {
		return true
	}
	if t.MaxPerMinute > riskMaxPerMinute {
		return true
	}
	if t.MaxPerHour > riskMaxPerHour {
		return true
	}
	return t.ComputedMinDelay < riskMinDelayMs
}

// ResolveThrottling fills in the computed minimum delay, freezing the policy
// for the job.
func ResolveThrottling(delayMs, maxPerMinute, maxPerHour int) model.Throttling {
	return model.Throttling{
		DelayMs:          delayMs,
		MaxPerMinute:     maxPerMinute,
		MaxPerHour:       maxPerHour,
		ComputedMinDelay: ComputeMinDelay(delayMs, maxPerMinute, maxPerHour),
	}
}
