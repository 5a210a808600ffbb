// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/daybook/daybook/internal/model"
)

// MomentRequest is the JSON body accepted by create and update.
// Media bytes can only be sent as multipart form data.
type MomentRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	Date    string `json:"date,omitempty"`
}

// MomentResponse represents a moment in API responses.
type MomentResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MomentEnvelope wraps a single moment.
type MomentEnvelope struct {
	Moment MomentResponse `json:"moment"`
}

// MomentListResponse wraps a list of moments, newest first.
type MomentListResponse struct {
	Moments []MomentResponse `json:"moments"`
}

// SuccessResponse acknowledges an operation without a payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Field names the missing field for MISSING_FIELD errors.
	Field string `json:"field,omitempty"`
}

// FromMoment converts a domain moment.
func FromMoment(m *model.Moment) MomentResponse {
	return MomentResponse{
		ID:        m.ID,
		UserID:    m.OwnerID,
		Type:      string(m.Type),
		Content:   m.Content.Value(),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

// FromMoments converts a slice, never returning nil.
func FromMoments(moments []*model.Moment) []MomentResponse {
	out := make([]MomentResponse, 0, len(moments))
	for _, m := range moments {
		out = append(out, FromMoment(m))
	}
	return out
}
