package models

import "time"

// PlatformDiscord tags analysis results produced from Discord messages.
const PlatformDiscord = "discord"

// AnalysisOutput is what the LLM returned for one analysis call.
type AnalysisOutput struct {
	Model            string `json:"model" bson:"model"`
	Content          string `json:"content" bson:"content"`
	Parsed           any    `json:"parsed,omitempty" bson:"parsed,omitempty"`
	PromptTokens     int64  `json:"prompt_tokens" bson:"prompt_tokens"`
	CompletionTokens int64  `json:"completion_tokens" bson:"completion_tokens"`
}

// AnalysisScope identifies the channel an analysis ran over.
type AnalysisScope struct {
	ServerID  int64 `json:"server_id" bson:"server_id"`
	ChannelID int64 `json:"channel_id" bson:"channel_id"`
}

// AnalysisPeriod is the closed time window that was analyzed.
type AnalysisPeriod struct {
	From time.Time `json:"from" bson:"from"`
	To   time.Time `json:"to" bson:"to"`
}

// AnalysisResult is an append-only audit record of one analysis.
type AnalysisResult struct {
	ID        string          `json:"id,omitempty" bson:"-"`
	CreatorID int64           `json:"creator_id" bson:"creator_id"`
	Platform  string          `json:"platform" bson:"platform"`
	PromptKey string          `json:"prompt_key" bson:"prompt_key"`
	ModelName string          `json:"llm_model" bson:"llm_model"`
	Scope     AnalysisScope   `json:"scope" bson:"scope"`
	Period    AnalysisPeriod  `json:"period" bson:"period"`
	Result    *AnalysisOutput `json:"result" bson:"result"`
	CreatedAt time.Time       `json:"created_at" bson:"created_at"`
}
