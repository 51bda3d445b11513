package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUsernameTaken  = errors.New("username already taken")
	ErrEmailTaken     = errors.New("email already registered")
	errUniqueViolated = pq.ErrorCode("23505")
	errFKViolated     = pq.ErrorCode("23503")
)

// UserRepository abstracts user persistence.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetProfiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error)
	SearchUsers(ctx context.Context, query string, limit int, excludeID string) ([]models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (models.User, error)
	UpdateSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error)
	SetOnline(ctx context.Context, userID string, online bool) error
	ResetPresence(ctx context.Context, keepOnline []string) ([]string, error)
}

const userColumns = `id, name, username, email, password_hash, bio, profile_image, online,
        notifications, sound_enabled, vibration_enabled, read_receipts, created_at`

type userRow struct {
	ID               string    `db:"id"`
	Name             string    `db:"name"`
	Username         string    `db:"username"`
	Email            string    `db:"email"`
	PasswordHash     string    `db:"password_hash"`
	Bio              string    `db:"bio"`
	ProfileImage     string    `db:"profile_image"`
	Online           bool      `db:"online"`
	Notifications    bool      `db:"notifications"`
	SoundEnabled     bool      `db:"sound_enabled"`
	VibrationEnabled bool      `db:"vibration_enabled"`
	ReadReceipts     bool      `db:"read_receipts"`
	CreatedAt        time.Time `db:"created_at"`
}

func (r userRow) model() models.User {
	return models.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Bio:          r.Bio,
		ProfileImage: r.ProfileImage,
		Online:       r.Online,
		Settings: models.Settings{
			Notifications:    r.Notifications,
			SoundEnabled:     r.SoundEnabled,
			VibrationEnabled: r.VibrationEnabled,
			ReadReceipts:     r.ReadReceipts,
		},
		CreatedAt: r.CreatedAt,
	}
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a new account. Uniqueness of username and email is enforced by the schema.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `INSERT INTO users (id, name, username, email, password_hash,
            notifications, sound_enabled, vibration_enabled, read_receipts)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING `+userColumns,
		user.ID, user.Name, user.Username, strings.ToLower(user.Email), user.PasswordHash,
		user.Settings.Notifications, user.Settings.SoundEnabled, user.Settings.VibrationEnabled, user.Settings.ReadReceipts)
	if err != nil {
		return models.User{}, mapUserErr(err)
	}
	return row.model(), nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID string) (models.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return row.model(), nil
}

// GetUserByEmail fetches a user by email, case-insensitively.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE LOWER(email)=LOWER($1)`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return row.model(), nil
}

// GetProfiles fetches public profiles keyed by id. Unknown ids are skipped.
func (r *UserRepo) GetProfiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error) {
	out := make(map[string]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var profiles []models.PublicProfile
	err := r.db.SelectContext(ctx, &profiles,
		`SELECT id, name, username, bio, profile_image, online FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.ID] = p
	}
	return out, nil
}

// SearchUsers finds users whose username or name contains query.
func (r *UserRepo) SearchUsers(ctx context.Context, query string, limit int, excludeID string) ([]models.PublicProfile, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	profiles := []models.PublicProfile{}
	err := r.db.SelectContext(ctx, &profiles, `SELECT id, name, username, bio, profile_image, online
        FROM users
        WHERE id <> $1 AND (username ILIKE $2 OR name ILIKE $2)
        ORDER BY LOWER(username)
        LIMIT $3`, excludeID, pattern, limit)
	return profiles, err
}

// UpdateProfile merges the supplied fields into the profile.
func (r *UserRepo) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (models.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, `UPDATE users SET
            name = COALESCE($2, name),
            username = COALESCE($3, username),
            bio = COALESCE($4, bio),
            profile_image = COALESCE($5, profile_image)
        WHERE id=$1
        RETURNING `+userColumns, userID, patch.Name, patch.Username, patch.Bio, patch.ProfileImage)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, mapUserErr(err)
	}
	return row.model(), nil
}

// UpdateSettings merges the supplied toggles and returns the stored settings.
func (r *UserRepo) UpdateSettings(ctx context.Context, userID string, patch models.SettingsPatch) (models.Settings, error) {
	var settings models.Settings
	err := r.db.GetContext(ctx, &settings, `UPDATE users SET
            notifications = COALESCE($2, notifications),
            sound_enabled = COALESCE($3, sound_enabled),
            vibration_enabled = COALESCE($4, vibration_enabled),
            read_receipts = COALESCE($5, read_receipts)
        WHERE id=$1
        RETURNING notifications, sound_enabled, vibration_enabled, read_receipts`,
		userID, patch.Notifications, patch.SoundEnabled, patch.VibrationEnabled, patch.ReadReceipts)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Settings{}, ErrUserNotFound
	}
	return settings, err
}

// SetOnline updates the presence flag.
func (r *UserRepo) SetOnline(ctx context.Context, userID string, online bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET online=$2 WHERE id=$1`, userID, online)
	return err
}

// ResetPresence marks every online user offline except keepOnline and returns the ids it changed.
func (r *UserRepo) ResetPresence(ctx context.Context, keepOnline []string) ([]string, error) {
	if keepOnline == nil {
		keepOnline = []string{}
	}
	ids := []string{}
	err := r.db.SelectContext(ctx, &ids, `UPDATE users SET online=FALSE
        WHERE online = TRUE AND NOT (id = ANY($1))
        RETURNING id`, pq.Array(keepOnline))
	return ids, err
}

func mapUserErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == errUniqueViolated {
		switch pqErr.Constraint {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		}
	}
	return fmt.Errorf("users: %w", err)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
