package models

import (
	"strings"
	"time"
	"unicode"

	"github.com/lib/pq"
)

// Profile is the display record of a user, owned by the profile service.
type Profile struct {
	UserID      string         `gorm:"primaryKey" json:"user_id"`
	DisplayName string         `gorm:"type:text" json:"display_name"`
	Email       string         `gorm:"type:text" json:"email"`
	PetNames    pq.StringArray `gorm:"type:text[]" json:"pet_names,omitempty"`
}

// PlaceholderProfile is used when the profile service has no record for userID.
func PlaceholderProfile(userID string) Profile {
	return Profile{UserID: userID, DisplayName: userID}
}

// Initials returns up to two upper-case initials of the display name,
// falling back to the email.
func (p Profile) Initials() string {
	source := strings.TrimSpace(p.DisplayName)
	if source == "" {
		source = strings.TrimSpace(p.Email)
	}
	var initials []rune
	for _, word := range strings.Fields(source) {
		for _, r := range word {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				initials = append(initials, unicode.ToUpper(r))
				break
			}
		}
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// Booking is the sitting context a conversation may be linked to.
type Booking struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	PetName  string    `gorm:"type:text" json:"pet_name"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `gorm:"type:text" json:"status"`
}
