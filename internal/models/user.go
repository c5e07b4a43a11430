package models

import "time"

// User is an account that can sign in to the private area.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	Preferences  Preferences `json:"preferences"`
}

// Preferences are the notification toggles on the settings page.
type Preferences struct {
	EmailNotifications bool `json:"email_notifications" form:"email_notifications"`
	PortfolioUpdates   bool `json:"portfolio_updates" form:"portfolio_updates"`
	SecurityAlerts     bool `json:"security_alerts" form:"security_alerts"`
}

// DefaultPreferences has every toggle on.
func DefaultPreferences() Preferences {
	return Preferences{EmailNotifications: true, PortfolioUpdates: true, SecurityAlerts: true}
}

// Session is a signed-in browser session.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Profile is the public-facing identity of a user.
type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the fields to change; nil fields are left alone.
type ProfileUpdate struct {
	Username  *string `json:"username"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

// Apply merges u into p.
func (u ProfileUpdate) Apply(p Profile) Profile {
	if u.Username != nil {
		p.Username = *u.Username
	}
	if u.FullName != nil {
		p.FullName = *u.FullName
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p
}
