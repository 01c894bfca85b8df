package service

import (
	"context"
	"time"

	"citylink/internal/models"
	"citylink/internal/repository"
)

const recentReportsLimit = 5

// timeframes lists the accepted analytics windows.
var timeframes = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
}

const defaultTimeframe = "7d"

type DashboardOverview struct {
	TotalReports      int64   `json:"totalReports"`
	PendingReports    int64   `json:"pendingReports"`
	ResolvedToday     int64   `json:"resolvedToday"`
	AvgResolutionTime float64 `json:"avgResolutionTime"` // days
	ActiveUsers       int64   `json:"activeUsers"`
}

type Dashboard struct {
	Overview      DashboardOverview     `json:"overview"`
	CategoryStats []models.CategoryStat `json:"categoryStats"`
	RecentReports []models.Report       `json:"recentReports"`
}

type StatusCount struct {
	Status models.Status `json:"status"`
	Count  int64         `json:"count"`
}

type Analytics struct {
	Timeframe          string              `json:"timeframe"`
	TrendData          []models.TrendPoint `json:"trendData"`
	StatusDistribution []StatusCount       `json:"statusDistribution"`
}

// AnalyticsService computes read-only admin aggregates.
type AnalyticsService struct {
	reports repository.ReportRepository
	users   repository.UserRepository
	now     func() time.Time
	loc     *time.Location // "today" boundary
}

func NewAnalyticsService(reports repository.ReportRepository, users repository.UserRepository) *AnalyticsService {
	return &AnalyticsService{reports: reports, users: users, now: time.Now, loc: time.Local}
}

func (s *AnalyticsService) DashboardStats(ctx context.Context) (*Dashboard, error) {
	counts, err := s.reports.StatusCounts(ctx, nil)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	resolvedToday, err := s.reports.CountResolvedSince(ctx, midnight)
	if err != nil {
		return nil, err
	}

	avg, err := s.reports.AvgResolutionDays(ctx)
	if err != nil {
		return nil, err
	}
	cats, err := s.reports.CategoryBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.reports.Find(ctx, repository.ReportQuery{Sort: "createdAt", Desc: true, Limit: recentReportsLimit})
	if err != nil {
		return nil, err
	}
	if err := populateAll(ctx, s.users, recent); err != nil {
		return nil, err
	}
	active, err := s.users.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Overview: DashboardOverview{
			TotalReports:      counts.Total,
			PendingReports:    counts.Pending,
			ResolvedToday:     resolvedToday,
			AvgResolutionTime: avg,
			ActiveUsers:       active,
		},
		CategoryStats: cats,
		RecentReports: recent,
	}, nil
}

// ReportsAnalytics aggregates reports created within the timeframe. Unknown
// timeframes fall back to 7d and the effective value is echoed.
func (s *AnalyticsService) ReportsAnalytics(ctx context.Context, timeframe string) (*Analytics, error) {
	window, ok := timeframes[timeframe]
	if !ok {
		timeframe = defaultTimeframe
		window = timeframes[defaultTimeframe]
	}
	since := s.now().Add(-window)

	trend, err := s.reports.DailyTrend(ctx, since)
	if err != nil {
		return nil, err
	}
	counts, err := s.reports.StatusCounts(ctx, &since)
	if err != nil {
		return nil, err
	}
	dist := make([]StatusCount, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		if n := counts.Of(st); n > 0 {
			dist = append(dist, StatusCount{Status: st, Count: n})
		}
	}
	return &Analytics{Timeframe: timeframe, TrendData: trend, StatusDistribution: dist}, nil
}
