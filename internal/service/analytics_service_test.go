package service

import (
	"context"
	"testing"
	"time"

	"citylink/internal/models"
)

func TestAverageResolutionTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	d, err := e.analytic.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Overview.AvgResolutionTime != 0 || d.Overview.TotalReports != 0 {
		t.Fatalf("empty overview = %+v", d.Overview)
	}

	a := e.create(t, nil)
	b := e.create(t, nil)
	e.create(t, nil) // never resolved

	e.clock.advance(24 * time.Hour)
	if _, err := e.svc.UpdateStatus(ctx, a.ID, StatusUpdate{Status: "resolved"}); err != nil {
		t.Fatal(err)
	}
	e.clock.advance(48 * time.Hour)
	if _, err := e.svc.UpdateStatus(ctx, b.ID, StatusUpdate{Status: "resolved"}); err != nil {
		t.Fatal(err)
	}

	d, err = e.analytic.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Overview.AvgResolutionTime != 2.0 {
		t.Fatalf("avg = %v, want 2.0", d.Overview.AvgResolutionTime)
	}
	if d.Overview.TotalReports != 3 || d.Overview.PendingReports != 1 {
		t.Fatalf("overview = %+v", d.Overview)
	}
}

func TestDashboardResolvedTodayAndRecent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.user(t, "a@x.io", models.RoleCitizen)
	inactive := e.user(t, "b@x.io", models.RoleCitizen)
	if _, err := e.users.SetActive(ctx, inactive.ID, false); err != nil {
		t.Fatal(err)
	}

	// t0 is 15:00 UTC; yesterday 23:00 and today 09:00 straddle midnight
	e.clock.t = t0.Add(-16 * time.Hour)
	old := e.create(t, nil)
	if _, err := e.svc.UpdateStatus(ctx, old.ID, StatusUpdate{Status: "resolved"}); err != nil {
		t.Fatal(err)
	}
	e.clock.t = t0.Add(-6 * time.Hour)
	today := e.create(t, nil)
	if _, err := e.svc.UpdateStatus(ctx, today.ID, StatusUpdate{Status: "resolved"}); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		e.clock.advance(time.Minute)
		e.create(t, func(in *ReportInput) { in.Category = models.CategoryStreetlight })
	}
	e.clock.t = t0

	d, err := e.analytic.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d.Overview.ResolvedToday != 1 {
		t.Fatalf("resolvedToday = %d", d.Overview.ResolvedToday)
	}
	if d.Overview.ActiveUsers != 1 {
		t.Fatalf("activeUsers = %d", d.Overview.ActiveUsers)
	}
	if len(d.RecentReports) != 5 {
		t.Fatalf("recent = %d", len(d.RecentReports))
	}
	for _, r := range d.RecentReports {
		if r.Category != models.CategoryStreetlight {
			t.Fatalf("recent should be the 5 newest, got %s", r.Category)
		}
	}
	if len(d.CategoryStats) != 2 || d.CategoryStats[0].Category != models.CategoryStreetlight ||
		d.CategoryStats[0].Pending != 5 || d.CategoryStats[1].Resolved != 2 {
		t.Fatalf("categoryStats = %+v", d.CategoryStats)
	}
}

func TestReportsAnalytics(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.clock.t = t0.Add(-10 * 24 * time.Hour)
	e.create(t, nil) // outside 7d

	e.clock.t = t0.Add(-3 * 24 * time.Hour)
	r := e.create(t, nil)
	if _, err := e.svc.UpdateStatus(ctx, r.ID, StatusUpdate{Status: "resolved"}); err != nil {
		t.Fatal(err)
	}
	e.create(t, nil)

	e.clock.t = t0.Add(-time.Hour)
	x := e.create(t, nil)
	if _, err := e.svc.UpdateStatus(ctx, x.ID, StatusUpdate{Status: "rejected"}); err != nil {
		t.Fatal(err)
	}
	e.clock.t = t0

	a, err := e.analytic.ReportsAnalytics(ctx, "bogus")
	if err != nil {
		t.Fatal(err)
	}
	if a.Timeframe != "7d" {
		t.Fatalf("timeframe = %s", a.Timeframe)
	}
	if len(a.TrendData) != 2 {
		t.Fatalf("trend = %+v", a.TrendData)
	}
	first := a.TrendData[0]
	if first.Date != "2025-03-07" || first.Total != 2 || first.Resolved != 1 {
		t.Fatalf("trend[0] = %+v", first)
	}
	if a.TrendData[1].Date != "2025-03-10" {
		t.Fatalf("trend[1] = %+v", a.TrendData[1])
	}
	wantDist := []StatusCount{
		{models.StatusPending, 1},
		{models.StatusResolved, 1},
		{models.StatusRejected, 1},
	}
	if len(a.StatusDistribution) != len(wantDist) {
		t.Fatalf("dist = %+v", a.StatusDistribution)
	}
	for i := range wantDist {
		if a.StatusDistribution[i] != wantDist[i] {
			t.Fatalf("dist[%d] = %+v", i, a.StatusDistribution[i])
		}
	}

	day, err := e.analytic.ReportsAnalytics(ctx, "24h")
	if err != nil {
		t.Fatal(err)
	}
	if day.Timeframe != "24h" || len(day.TrendData) != 1 || day.TrendData[0].Total != 1 {
		t.Fatalf("24h = %+v", day)
	}

	all, err := e.analytic.ReportsAnalytics(ctx, "30d")
	if err != nil {
		t.Fatal(err)
	}
	var total int64
	for _, tp := range all.TrendData {
		total += tp.Total
	}
	if total != 4 {
		t.Fatalf("30d total = %d", total)
	}
}
