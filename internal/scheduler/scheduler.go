// Package scheduler provides cron-based background jobs, including the
// inactivity sweep that nudges idle conversations.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kalidas7337/whatsapp-saas-sub000/internal/conversation"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/engine"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/models"
	"github.com/kalidas7337/whatsapp-saas-sub000/internal/store"
)

// SweepSchedule is the default cron expression for the inactivity sweep.
const SweepSchedule = "* * * * *"

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler using the standard
// 5-field parser, with panic recovery around jobs.
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// ContextSource lists and saves conversation contexts for the sweep.
type ContextSource interface {
	ListContexts(ctx context.Context) ([]store.ContextEntry, error)
	SaveContextEntry(entry store.ContextEntry) error
}

// DeliverFunc delivers an inactivity response to the conversation's channel.
type DeliverFunc func(ctx context.Context, entry store.ContextEntry, resp *models.BotResponse)

// InactivitySweep finds conversations idle past the threshold and runs the
// tenant's inactivity flow against each.
type InactivitySweep struct {
	engine    *engine.Engine
	contexts  ContextSource
	deliver   DeliverFunc
	threshold time.Duration
	now       func() time.Time
}

// NewInactivitySweep builds a sweep. A zero threshold falls back to the
// conversation default.
func NewInactivitySweep(eng *engine.Engine, contexts ContextSource, deliver DeliverFunc, threshold time.Duration) *InactivitySweep {
	if threshold <= 0 {
		threshold = conversation.DefaultIdleThreshold
	}
	return &InactivitySweep{
		engine:    eng,
		contexts:  contexts,
		deliver:   deliver,
		threshold: threshold,
		now:       time.Now,
	}
}

// Run executes one sweep pass. Per-conversation failures are logged and
// skipped so one bad record cannot stall the pass.
func (s *InactivitySweep) Run(ctx context.Context) {
	entries, err := s.contexts.ListContexts(ctx)
	if err != nil {
		slog.Error("scheduler.InactivitySweep: listing contexts failed", "error", err)
		return
	}

	now := s.now()
	triggered := 0
	for _, entry := range entries {
		convo := conversation.Parse(entry.Record)
		if convo.IsInActiveFlow() || !convo.IsIdle(s.threshold, now) {
			continue
		}

		msg := models.BotIncomingMessage{
			TenantID:       entry.TenantID,
			ConversationID: entry.ConversationID,
			Contact:        entry.Contact,
			Type:           models.MessageTypeText,
			Context:        entry.Record,
		}
		resp, terr := s.engine.TriggerInactivityFlow(ctx, msg)
		if terr != nil {
			slog.Error("scheduler.InactivitySweep: trigger failed", "conversationID", entry.ConversationID, "error", terr)
			continue
		}
		if resp == nil {
			continue
		}

		entry.Record = resp.ContextUpdates
		if serr := s.contexts.SaveContextEntry(entry); serr != nil {
			slog.Error("scheduler.InactivitySweep: saving context failed", "conversationID", entry.ConversationID, "error", serr)
		}
		if s.deliver != nil {
			s.deliver(ctx, entry, resp)
		}
		triggered++
	}

	if triggered > 0 {
		slog.Info("scheduler.InactivitySweep: sweep complete", "scanned", len(entries), "triggered", triggered)
	}
}
