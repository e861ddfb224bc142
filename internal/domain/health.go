package domain

// HealthStatus is the outcome of one doctor check.
type HealthStatus string

const (
	HealthOK    HealthStatus = "ok"
	HealthWarn  HealthStatus = "warn"
	HealthError HealthStatus = "error"
)

// HealthCheck is one line of the doctor report.
type HealthCheck struct {
	Name    string
	Status  HealthStatus
	Details string
}

// HealthReport lists checks in the order they ran.
type HealthReport struct {
	Checks []HealthCheck
}

// Failed returns the names of checks that ended in HealthError. Warnings do
// not count.
func (r HealthReport) Failed() []string {
	var names []string
	for _, check := range r.Checks {
		if check.Status == HealthError {
			names = append(names, check.Name)
		}
	}
	return names
}
