package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// StatusCounts breaks a day's appointments down by lifecycle state.
type StatusCounts struct {
	Booked    int `json:"booked"`
	CheckedIn int `json:"checkedIn"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

type DailyReport struct {
	Date     string         `json:"date"`
	Total    int            `json:"total"`
	ByStatus StatusCounts   `json:"byStatus"`
	ByDoctor map[string]int `json:"byDoctor"`
}

type MonthlyReport struct {
	Year         int            `json:"year"`
	Month        int            `json:"month"`
	Total        int            `json:"total"`
	ByDoctor     map[string]int `json:"byDoctor"`
	DailyAverage float64        `json:"dailyAverage"`
}

// Service answers admin reporting queries. Reads are snapshot reads with no
// ordering guarantee against concurrent bookings.
type Service struct {
	pool DB
}

func NewService(pool DB) *Service {
	return &Service{pool: pool}
}

// Daily aggregates the appointments created on the given day by status and
// by doctor.
func (s *Service) Daily(ctx context.Context, date time.Time) (*DailyReport, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.pool.Query(ctx, `
		SELECT a.status, d.name, count(*)
		FROM appointments a
		JOIN time_slots s ON s.id = a.time_slot_id
		JOIN doctors d ON d.id = s.doctor_id
		WHERE a.created_at >= $1 AND a.created_at < $2
		GROUP BY a.status, d.name
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("daily report query: %w", err)
	}
	defer rows.Close()

	report := DailyReport{
		Date:     start.Format("2006-01-02"),
		ByDoctor: make(map[string]int),
	}

	for rows.Next() {
		var status, doctor string
		var count int
		if err := rows.Scan(&status, &doctor, &count); err != nil {
			return nil, err
		}

		report.Total += count
		report.ByDoctor[doctor] += count

		switch status {
		case "BOOKED":
			report.ByStatus.Booked += count
		case "CHECKED_IN":
			report.ByStatus.CheckedIn += count
		case "COMPLETED":
			report.ByStatus.Completed += count
		case "CANCELLED":
			report.ByStatus.Cancelled += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &report, nil
}

// Monthly aggregates a calendar month by doctor and reports the per-day mean.
func (s *Service) Monthly(ctx context.Context, year, month int) (*MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month out of range: %d", month)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)
	daysInMonth := end.AddDate(0, 0, -1).Day()

	rows, err := s.pool.Query(ctx, `
		SELECT d.name, count(*)
		FROM appointments a
		JOIN time_slots s ON s.id = a.time_slot_id
		JOIN doctors d ON d.id = s.doctor_id
		WHERE a.created_at >= $1 AND a.created_at < $2
		GROUP BY d.name
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("monthly report query: %w", err)
	}
	defer rows.Close()

	report := MonthlyReport{
		Year:     year,
		Month:    month,
		ByDoctor: make(map[string]int),
	}

	for rows.Next() {
		var doctor string
		var count int
		if err := rows.Scan(&doctor, &count); err != nil {
			return nil, err
		}
		report.Total += count
		report.ByDoctor[doctor] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.DailyAverage = float64(report.Total) / float64(daysInMonth)

	return &report, nil
}
