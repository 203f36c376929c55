package domain

import "time"

// HealthStatus is the state of one subsystem.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusCritical  HealthStatus = "critical"
)

// OverallStatus is the combined state of the system.
type OverallStatus string

const (
	OverallHealthy  OverallStatus = "healthy"
	OverallDegraded OverallStatus = "degraded"
	OverallCritical OverallStatus = "critical"
)

// Subsystem names used in reports and the journal.
const (
	SubsystemDataService = "data_service"
	SubsystemScoring     = "ml_models"
	SubsystemAPIs        = "apis"
)

// SubsystemReport is the result of probing one subsystem.
type SubsystemReport struct {
	Name     string            `json:"name"`
	Status   HealthStatus      `json:"status"`
	Message  string            `json:"message"`
	Required bool              `json:"required"`
	Details  map[string]string `json:"details,omitempty"`
}

// HealthReport is a point-in-time assessment of all subsystems.
type HealthReport struct {
	Timestamp   time.Time       `json:"timestamp"`
	DataService SubsystemReport `json:"data_service"`
	Scoring     SubsystemReport `json:"ml_models"`
	APIs        SubsystemReport `json:"apis"`
	Overall     OverallStatus   `json:"overall"`
}

// Subsystems returns the per-subsystem reports in probe order.
func (r HealthReport) Subsystems() []SubsystemReport {
	return []SubsystemReport{r.DataService, r.Scoring, r.APIs}
}

// CombineHealth derives the overall status. A critical required subsystem makes the
// system critical and any unhealthy subsystem degrades it. A critical optional
// subsystem does not affect the result.
func CombineHealth(reports ...SubsystemReport) OverallStatus {
	degraded := false
	for _, r := range reports {
		switch r.Status {
		case StatusCritical:
			if r.Required {
				return OverallCritical
			}
		case StatusUnhealthy:
			degraded = true
		}
	}
	if degraded {
		return OverallDegraded
	}
	return OverallHealthy
}
