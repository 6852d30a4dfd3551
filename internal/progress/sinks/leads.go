package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
)

// LeadMessage is the payload published for an urgent outreach lead.
type LeadMessage struct {
	RunID     string    `json:"run_id"`
	Row       int       `json:"row"`
	Business  string    `json:"business"`
	Site      string    `json:"site,omitempty"`
	Priority  string    `json:"priority"`
	Reason    string    `json:"reason,omitempty"`
	AuditedAt time.Time `json:"audited_at"`
}

// LeadSink publishes one message per qualified lead at or above a minimum
// priority.
type LeadSink struct {
	publisher audit.Publisher
	topic     string
	minRank   int
	logger    *zap.Logger
}

// NewLeadSink publishes leads ranked at least min (e.g. audit.PriorityHigh).
func NewLeadSink(publisher audit.Publisher, topic string, minPriority audit.Priority, logger *zap.Logger) *LeadSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadSink{
		publisher: publisher,
		topic:     topic,
		minRank:   minPriority.Rank(),
		logger:    logger.Named("leads"),
	}
}

// Consume publishes the qualifying leads in the batch and stops at the first
// publish error.
func (s *LeadSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil {
		return nil
	}
	for _, evt := range batch {
		if evt.Stage != progress.StageBusinessDone || evt.Category != audit.CategoryQualified {
			continue
		}
		if evt.Priority.Rank() > s.minRank {
			continue
		}
		msg := LeadMessage{
			RunID:     evt.RunUUID().String(),
			Row:       evt.Row,
			Business:  evt.Business,
			Site:      evt.Site,
			Priority:  string(evt.Priority),
			Reason:    evt.Note,
			AuditedAt: evt.TS.UTC(),
		}
		id, err := s.publisher.Publish(ctx, s.topic, msg)
		if err != nil {
			return fmt.Errorf("publish lead row %d: %w", evt.Row, err)
		}
		s.logger.Debug("lead published", zap.Int("row", evt.Row), zap.String("message_id", id))
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LeadSink) Close(context.Context) error {
	return nil
}
