// Package reminder runs the daily jobs: the streak rollover sweep at day
// start and the morning digest sent to users who linked a Telegram chat.
package reminder

import (
	"context"
	"fmt"
	"html"
	"strings"

	"habitline/internal/engine"
	"habitline/internal/logging"
)

type Service struct {
	Engine   engine.Engine
	Notifier Notifier
	Log      logging.Logger
}

type DigestReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (s Service) log() logging.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Nop()
}

// SendDailyDigests sends today's dashboard to every linked chat. A failed
// delivery is logged and counted; the sweep continues.
func (s Service) SendDailyDigests(ctx context.Context) (DigestReport, error) {
	if s.Notifier == nil {
		return DigestReport{}, fmt.Errorf("notifier not configured")
	}
	profiles, err := s.Engine.Repo.ListProfiles(ctx, true)
	if err != nil {
		return DigestReport{}, fmt.Errorf("list profiles: %w", err)
	}
	var report DigestReport
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		view, err := s.Engine.Dashboard(ctx, p.ID)
		if err != nil {
			report.Failed++
			s.log().Errorw("digest dashboard failed", "user_id", p.ID, "error", err)
			continue
		}
		if err := s.Notifier.Notify(ctx, *p.TelegramChatID, FormatDigest(p.Username, view)); err != nil {
			report.Failed++
			s.log().Warnw("digest delivery failed", "user_id", p.ID, "error", err)
			continue
		}
		report.Sent++
	}
	s.log().Infow("daily digests sent", "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

// Rollover resets streaks that lapsed before today.
func (s Service) Rollover(ctx context.Context) (int, error) {
	return s.Engine.RolloverAll(ctx)
}

// Register schedules both jobs. Jobs run with a background context and
// log their errors.
func (s Service) Register(sched *Scheduler, digestAt, rolloverAt string) error {
	if _, err := sched.ScheduleDaily(rolloverAt, func() {
		if _, err := s.Rollover(context.Background()); err != nil {
			s.log().Errorw("scheduled rollover failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	if s.Notifier == nil {
		return nil
	}
	if _, err := sched.ScheduleDaily(digestAt, func() {
		if _, err := s.SendDailyDigests(context.Background()); err != nil {
			s.log().Errorw("scheduled digest failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	return nil
}

// FormatDigest renders a dashboard as a Telegram HTML message.
func FormatDigest(username string, view engine.DashboardView) string {
	var b strings.Builder
	name := strings.TrimSpace(username)
	if name == "" {
		name = "there"
	}
	b.WriteString(fmt.Sprintf("<b>Good morning, %s!</b>\n", html.EscapeString(name)))
	b.WriteString(fmt.Sprintf("🗓 %s\n\n", view.Date))
	if len(view.Tasks) == 0 {
		b.WriteString("No tasks for today yet. Regenerate your plan to get started.\n")
	} else {
		b.WriteString(fmt.Sprintf("<b>Today's plan</b> (%d/%d done)\n", view.CompletedCount, view.TotalCount))
		for _, t := range view.Tasks {
			mark := "⬜"
			if t.Completed {
				mark = "✅"
			}
			b.WriteString(fmt.Sprintf("%s %s\n", mark, html.EscapeString(t.Title)))
			if t.Description != "" {
				b.WriteString(fmt.Sprintf("   <i>%s</i>\n", html.EscapeString(t.Description)))
			}
		}
	}
	b.WriteString(fmt.Sprintf("\n🔥 %s\n", html.EscapeString(view.StreakMessage)))
	if view.MotivationalMessage != "" {
		b.WriteString(fmt.Sprintf("💬 %s\n", html.EscapeString(view.MotivationalMessage)))
	}
	return strings.TrimSpace(b.String())
}
