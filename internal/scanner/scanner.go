// Package scanner runs anomaly detection for a fixed list of users on a cron
// schedule and logs what it finds.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dvloznov/statement-insights/internal/anomaly"
)

// scanTimeout bounds a single scheduled run.
const scanTimeout = 10 * time.Minute

// Detector produces an anomaly report for one user.
type Detector interface {
	Detect(ctx context.Context, userID string, opts anomaly.Options) (*anomaly.Report, error)
}

// UserScan is the outcome of scanning one user.
type UserScan struct {
	UserID    string
	Anomalies int
	Patterns  int
	Err       error
}

// Scanner scans the configured users.
type Scanner struct {
	detector Detector
	users    []string
	opts     anomaly.Options
	log      zerolog.Logger
}

// New creates a scanner. Users are scanned in the order given.
func New(detector Detector, users []string, opts anomaly.Options, log zerolog.Logger) *Scanner {
	return &Scanner{
		detector: detector,
		users:    append([]string(nil), users...),
		opts:     opts,
		log:      log,
	}
}

// RunOnce scans every user. A failing user is logged and reported in the
// result; the remaining users are still scanned. The returned error joins all
// per-user failures.
func (s *Scanner) RunOnce(ctx context.Context) ([]UserScan, error) {
	results := make([]UserScan, 0, len(s.users))
	var errs []error

	for _, userID := range s.users {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		scan := s.scanUser(ctx, userID)
		if scan.Err != nil {
			errs = append(errs, scan.Err)
		}
		results = append(results, scan)
	}

	return results, errors.Join(errs...)
}

func (s *Scanner) scanUser(ctx context.Context, userID string) UserScan {
	log := s.log.With().Str("user_id", userID).Logger()

	report, err := s.detector.Detect(ctx, userID, s.opts)
	if err != nil {
		log.Error().Err(err).Msg("Anomaly scan failed")
		return UserScan{UserID: userID, Err: fmt.Errorf("scan %s: %w", userID, err)}
	}

	for _, a := range report.AmountAnomalies {
		log.Warn().
			Str("transaction_id", a.ID).
			Str("date", a.Date.String()).
			Str("description", a.Description).
			Str("amount", a.Amount.StringFixed(2)).
			Float64("z_score", a.ZScore).
			Str("severity", string(a.Severity)).
			Msg(a.Message)
	}
	for _, p := range report.UnusualPatterns {
		log.Warn().
			Str("pattern", string(p.Type)).
			Str("severity", string(p.Severity)).
			Msg(p.Message)
	}

	log.Info().
		Int("analyzed", report.Summary.Analyzed).
		Int("anomalies", len(report.AmountAnomalies)).
		Int("patterns", len(report.UnusualPatterns)).
		Msg("Anomaly scan completed")

	return UserScan{
		UserID:    userID,
		Anomalies: len(report.AmountAnomalies),
		Patterns:  len(report.UnusualPatterns),
	}
}

// Schedule registers RunOnce on c under the given cron spec.
func (s *Scanner) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		runCtx, cancel := context.WithTimeout(ctx, scanTimeout)
		defer cancel()

		start := time.Now()
		if _, err := s.RunOnce(runCtx); err != nil {
			s.log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled scan finished with errors")
			return
		}
		s.log.Info().Dur("duration", time.Since(start)).Int("users", len(s.users)).Msg("Scheduled scan finished")
	})
	if err != nil {
		return 0, fmt.Errorf("Schedule: invalid spec %q: %w", spec, err)
	}
	return id, nil
}

// CronLogger adapts a zerolog logger to cron's logging interface.
func CronLogger(log zerolog.Logger) cron.Logger {
	return cronLogger{log: log}
}

type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
