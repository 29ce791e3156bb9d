package models

import "time"

// Message represents a harvested Discord message record.
// ID is the Discord snowflake and doubles as the primary key.
type Message struct {
	ID              int64     `json:"id" bson:"_id"`
	ChannelID       int64     `json:"channel_id" bson:"channel_id"`
	ParentMessageID *int64    `json:"parent_message_id,omitempty" bson:"parent_message_id,omitempty"` // weak reference, may dangle
	AuthorUserID    int64     `json:"user_id"`
	AuthorName      string    `json:"author_name" bson:"author_name"`
	Content         string    `json:"content" bson:"content"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	FetchedAt       time.Time `json:"fetched_at" bson:"fetched_at"`
}

// MessageFilter selects stored messages of one channel inside a time window.
// Zero times leave that side open.
type MessageFilter struct {
	ChannelID int64
	From      time.Time
	To        time.Time
}

// Server is a Discord guild registered on its first successful harvest.
type Server struct {
	ID          int64  `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	RequesterID string `json:"user_id" bson:"-"`
}

// Channel is a guild text channel registered on its first successful harvest.
type Channel struct {
	ID       int64  `json:"id" bson:"_id"`
	ServerID int64  `json:"server_id" bson:"server_id"`
	Name     string `json:"name" bson:"name"`
}
