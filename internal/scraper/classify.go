package scraper

import (
	"strings"

	"github.com/BradenHooton/prospector/internal/models"
)

// genericLocalParts are role mailboxes rather than people
var genericLocalParts = map[string]struct{}{
	"info": {}, "sales": {}, "support": {}, "contact": {}, "hello": {}, "hi": {},
	"admin": {}, "office": {}, "team": {}, "help": {}, "billing": {}, "accounts": {},
	"press": {}, "media": {}, "pr": {}, "marketing": {}, "jobs": {}, "careers": {},
	"hr": {}, "recruiting": {}, "privacy": {}, "legal": {}, "compliance": {},
	"partners": {}, "partnerships": {}, "affiliates": {}, "enquiries": {}, "inquiries": {},
	"noreply": {}, "no-reply": {}, "donotreply": {}, "do-not-reply": {},
	"webmaster": {}, "postmaster": {}, "abuse": {}, "security": {}, "feedback": {},
	"service": {}, "customerservice": {}, "orders": {}, "general": {},
}

// genericPrefixes catch role mailboxes with a suffix, e.g. "salesteam" or "info2"
var genericPrefixes = []string{"info", "sales", "support", "contact", "hello", "admin", "noreply", "help"}

// Classify labels an address generic (role mailbox) or personal
func Classify(email string) models.EmailType {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	local, _, _ = strings.Cut(local, "+")

	if _, ok := genericLocalParts[local]; ok {
		return models.EmailTypeGeneric
	}

	// a separator usually joins first and last name
	if strings.ContainsAny(local, "._-") {
		return models.EmailTypePersonal
	}

	for _, prefix := range genericPrefixes {
		if strings.HasPrefix(local, prefix) {
			return models.EmailTypeGeneric
		}
	}
	return models.EmailTypePersonal
}
