package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the body of GET /api/health.
type Report struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Analyzer string            `json:"analyzer"`
}

// Service reports whether the API's dependencies are reachable.
type Service struct {
	DB       Pinger
	Analyzer string
}

func NewService(db Pinger, analyzer string) *Service {
	return &Service{DB: db, Analyzer: analyzer}
}

// Status pings the database when one is configured. An unreachable database
// degrades the report; the in-memory mode reports the database as disabled.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{Status: "ok", Checks: map[string]string{}, Analyzer: s.Analyzer}
	if s.DB == nil {
		report.Checks["database"] = "disabled"
		return report
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.DB.PingContext(pctx); err != nil {
		report.Status = "degraded"
		report.Checks["database"] = "unavailable"
		return report
	}
	report.Checks["database"] = "ok"
	return report
}
