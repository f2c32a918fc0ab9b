package domain

import "time"

// Label is the classifier's verdict for a passage.
type Label string

const (
	LabelFake Label = "FAKE"
	LabelReal Label = "REAL"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// User is the identity record returned by the auth service. It is replaced
// wholesale on login or refresh, never patched field by field.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      UserRole  `json:"role,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Session is the authenticated identity currently held by the client, or its
// absence. Token and User are set and cleared together; IsAuthenticated is
// derived from them rather than stored, so the two can never diverge.
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// IsAuthenticated reports whether both halves of the credential pair are set.
func (s Session) IsAuthenticated() bool {
	return s.Token != "" && s.User != nil
}

// AnalysisResult is one classification outcome. PredictionID correlates a
// later feedback submission with this result.
type AnalysisResult struct {
	PredictionID string  `json:"predictionId"`
	Label        Label   `json:"prediction"`
	Confidence   float64 `json:"confidence"`
}

// Feedback is a 1-5 quality rating tied to a prior analysis.
type Feedback struct {
	AnalysisID string `json:"analysis_id"`
	Rating     int    `json:"rating"`
	UserID     string `json:"userId,omitempty"`
}

// NewsItem is a headline surfaced alongside the checker.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Link        string    `json:"link"`
	Source      string    `json:"source,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
}
