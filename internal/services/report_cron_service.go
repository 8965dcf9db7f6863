package services

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReportCronService runs the nightly at-risk occupancy report
type ReportCronService struct {
	cron   *cron.Cron
	trips  *TripService
	spec   string
	logger *logrus.Logger
}

// NewReportCronService creates a new ReportCronService
func NewReportCronService(trips *TripService, spec string, logger *logrus.Logger) *ReportCronService {
	// Seconds precision, matching the 6-field cron spec from config
	return &ReportCronService{
		cron:   cron.New(cron.WithSeconds()),
		trips:  trips,
		spec:   spec,
		logger: logger,
	}
}

// Start schedules and starts the report job
func (s *ReportCronService) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.atRiskReportJob); err != nil {
		return fmt.Errorf("failed to schedule at-risk report: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("At-risk report job scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *ReportCronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("At-risk report job stopped")
}

func (s *ReportCronService) atRiskReportJob() {
	report, err := s.trips.GetAtRiskTrips()
	if err != nil {
		s.logger.WithError(err).Error("At-risk report failed")
		return
	}

	if len(report.AtRiskTrips) == 0 {
		s.logger.Info("At-risk report: no trips at risk")
		return
	}

	for _, trip := range report.AtRiskTrips {
		s.logger.WithFields(logrus.Fields{
			"trip_id":           trip.TripID,
			"title":             trip.Title,
			"start_date":        trip.StartDate,
			"occupancy_percent": trip.OccupancyPercent,
		}).Warn("Trip at risk")
	}
	s.logger.WithField("count", len(report.AtRiskTrips)).Info("At-risk report completed")
}
