package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ClassifyRequest payload.
type ClassifyRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ClassificationResponse carries a suggested category. Both ids are null
// when no suggestion could be made.
type ClassificationResponse struct {
	CategoryID   *string `json:"category_id"`
	CategoryName *string `json:"category_name"`
	Confidence   float64 `json:"confidence"`
	Reason       string  `json:"reason"`
}

// SentimentRequest payload.
type SentimentRequest struct {
	Content string `json:"content"`
}

type SentimentResponse struct {
	Sentiment  domain.Sentiment `json:"sentiment"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
}

// SuggestRequest asks for a drafted answer. UseCustomPrompt defaults to true.
type SuggestRequest struct {
	TicketID        string   `json:"ticket_id"`
	UseCustomPrompt *bool    `json:"use_custom_prompt"`
	Temperature     *float64 `json:"temperature"`
	MaxTokens       int      `json:"max_tokens"`
}

type SuggestionResponse struct {
	Response          string `json:"response"`
	UsedKnowledgeBase bool   `json:"used_knowledge_base"`
	KBEntriesUsed     int    `json:"kb_entries_used"`
}

// SimilarTicketResponse is one keyword match.
type SimilarTicketResponse struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Status     domain.TicketStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	ResolvedAt *time.Time          `json:"resolved_at"`
}
