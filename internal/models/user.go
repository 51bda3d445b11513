package models

import "time"

// User is a registered account together with its public profile.
type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Bio          string    `db:"bio" json:"bio"`
	ProfileImage string    `db:"profile_image" json:"profile_image"`
	Online       bool      `db:"online" json:"online"`
	Settings     Settings  `db:"-" json:"settings"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID           string `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Username     string `db:"username" json:"username"`
	Bio          string `db:"bio" json:"bio"`
	ProfileImage string `db:"profile_image" json:"profile_image"`
	Online       bool   `db:"online" json:"online"`
}

// Profile returns the public view of the user.
func (u User) Profile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Bio:          u.Bio,
		ProfileImage: u.ProfileImage,
		Online:       u.Online,
	}
}

// Settings are per-user notification and privacy preferences.
type Settings struct {
	Notifications    bool `db:"notifications" json:"notifications"`
	SoundEnabled     bool `db:"sound_enabled" json:"sound_enabled"`
	VibrationEnabled bool `db:"vibration_enabled" json:"vibration_enabled"`
	ReadReceipts     bool `db:"read_receipts" json:"read_receipts"`
}

// DefaultSettings are applied at registration.
func DefaultSettings() Settings {
	return Settings{Notifications: true, SoundEnabled: true, VibrationEnabled: true, ReadReceipts: true}
}

// SettingsPatch carries the toggles a client wants to change; nil fields are left alone.
type SettingsPatch struct {
	Notifications    *bool `json:"notifications"`
	SoundEnabled     *bool `json:"sound_enabled"`
	VibrationEnabled *bool `json:"vibration_enabled"`
	ReadReceipts     *bool `json:"read_receipts"`
}

// ProfilePatch carries profile edits with merge semantics. Email is immutable.
type ProfilePatch struct {
	Name         *string `json:"name"`
	Username     *string `json:"username"`
	Bio          *string `json:"bio"`
	ProfileImage *string `json:"profile_image"`
}
