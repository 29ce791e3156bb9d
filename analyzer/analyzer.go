// Package analyzer runs a stored period of channel history through the LLM
// and keeps an audit record of every result.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"discord-harvester/database"
	"discord-harvester/llm"
	"discord-harvester/models"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrInvalidPeriod is returned for an unknown period name.
var ErrInvalidPeriod = errors.New("invalid period, use last_day, last_week or last_month")

// Periods accepted by Window.
const (
	PeriodLastDay   = "last_day"
	PeriodLastWeek  = "last_week"
	PeriodLastMonth = "last_month"
)

// Window returns the [from, now] window of a named period.
func Window(period string, now time.Time) (models.AnalysisPeriod, error) {
	var from time.Time
	switch period {
	case PeriodLastDay:
		from = now.AddDate(0, 0, -1)
	case PeriodLastWeek:
		from = now.AddDate(0, 0, -7)
	case PeriodLastMonth:
		from = now.AddDate(0, -1, 0)
	default:
		return models.AnalysisPeriod{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	return models.AnalysisPeriod{From: from, To: now}, nil
}

// Request describes one analysis.
type Request struct {
	CreatorID int64  `json:"creator_id" binding:"required"`
	ServerID  int64  `json:"serverId" binding:"required"`
	ChannelID int64  `json:"channelId" binding:"required"`
	ModelName string `json:"model_name" binding:"required"`
	PromptKey string `json:"prompt_key" binding:"required"`
	Period    string `json:"period" binding:"required"`
}

// Outcome is what an analysis produced. Result is nil when the period held
// no messages, in which case nothing was sent to the LLM.
type Outcome struct {
	ResultID string                 `json:"result_id,omitempty"`
	Result   *models.AnalysisOutput `json:"result"`
	Message  string                 `json:"message,omitempty"`
	Count    int                    `json:"message_count"`
}

// Store is what the service reads and writes.
type Store interface {
	FindMessages(ctx context.Context, f models.MessageFilter) ([]models.Message, error)
	database.AnalysisStore
}

// Service runs analyses.
type Service struct {
	store    Store
	analyzer llm.Analyzer
	now      func() time.Time
	log      zerolog.Logger
}

// NewService wires the service.
func NewService(store Store, analyzer llm.Analyzer) *Service {
	return &Service{
		store:    store,
		analyzer: analyzer,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "analyzer").Logger(),
	}
}

// Analyze loads the period's messages, sends them to the LLM and appends an
// AnalysisResult.
func (s *Service) Analyze(ctx context.Context, req Request) (*Outcome, error) {
	window, err := Window(req.Period, s.now())
	if err != nil {
		return nil, err
	}

	msgs, err := s.store.FindMessages(ctx, models.MessageFilter{ChannelID: req.ChannelID, From: window.From, To: window.To})
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if len(msgs) == 0 {
		return &Outcome{Message: "No messages found for this period."}, nil
	}

	out, err := s.analyzer.Analyze(ctx, req.ModelName, req.PromptKey, Format(msgs))
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertAnalysis(ctx, models.AnalysisResult{
		CreatorID: req.CreatorID,
		Platform:  models.PlatformDiscord,
		PromptKey: req.PromptKey,
		ModelName: req.ModelName,
		Scope:     models.AnalysisScope{ServerID: req.ServerID, ChannelID: req.ChannelID},
		Period:    window,
		Result:    out,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store analysis result: %w", err)
	}

	s.log.Info().Str("result_id", id).Int64("channel_id", req.ChannelID).Int("messages", len(msgs)).Msg("analysis stored")
	return &Outcome{ResultID: id, Result: out, Count: len(msgs)}, nil
}

// Format renders messages oldest first as "[YYYY-MM-DD HH:MM] author: content".
func Format(msgs []models.Message) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		author := m.AuthorName
		if author == "" {
			author = fmt.Sprint(m.AuthorUserID)
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", m.CreatedAt.UTC().Format("2006-01-02 15:04"), author, m.Content))
	}
	return lines
}
