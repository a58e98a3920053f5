package models

// OutreachRequest asks for one AI-written outreach message
type OutreachRequest struct {
	UserID string
	Email  string
	Tier   Tier

	ProspectEmail string
	FirstName     string
	Company       string
	Title         string
	Notes         string
}

// OutreachMessage is the generated text plus the caller's remaining allowance
type OutreachMessage struct {
	Text                 string `json:"text"`
	GenerationsRemaining int    `json:"generationsRemaining"`
}
