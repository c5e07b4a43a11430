// Package profile serves the owner's public profile and account settings.
package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/Zachkp/folio/internal/cache"
	"github.com/Zachkp/folio/internal/models"
	"github.com/Zachkp/folio/internal/notify"
	"github.com/Zachkp/folio/internal/repository"
	"github.com/Zachkp/folio/internal/storage"
)

// CacheTTL is how long a loaded profile is served without a reload.
const CacheTTL = 5 * time.Minute

var ErrNotAvailable = errors.New("account deletion is not available")

type Service struct {
	profiles repository.ProfileRepository
	users    repository.UserRepository
	bucket   storage.Bucket
	sink     notify.Sink
	cache    *cache.TTLCache[string, models.Profile]
}

func NewService(profiles repository.ProfileRepository, users repository.UserRepository, bucket storage.Bucket, sink notify.Sink) *Service {
	return &Service{
		profiles: profiles,
		users:    users,
		bucket:   bucket,
		sink:     sink,
		cache:    cache.New[string, models.Profile](CacheTTL, time.Minute),
	}
}

func (s *Service) Close() {
	s.cache.Close()
}

// Get returns the user's profile. A user without one yet gets an empty profile,
// exists=false and a welcome notification rather than an error.
func (s *Service) Get(ctx context.Context, userID string) (p models.Profile, exists bool, err error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, true, nil
	}
	stored, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		s.sink.Notify(notify.Info("Welcome!", "Let's set up your profile."))
		return models.Profile{ID: userID}, false, nil
	}
	if err != nil {
		s.sink.Notify(notify.Failure("Error", "Failed to load profile data"))
		return models.Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	s.cache.Set(userID, *stored)
	return *stored, true, nil
}

// Update merges upd into the stored profile, creating it when missing.
func (s *Service) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (models.Profile, error) {
	current, err := s.current(ctx, userID)
	if err != nil {
		s.sink.Notify(notify.Failure("Error", "Failed to update profile"))
		return models.Profile{}, err
	}

	next := upd.Apply(current)
	next.ID = userID
	next.Username = strings.TrimSpace(next.Username)
	next.FullName = strings.TrimSpace(next.FullName)
	next.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	if err := s.profiles.Upsert(ctx, &next); err != nil {
		s.sink.Notify(notify.Failure("Error", err.Error()))
		return models.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	s.cache.Set(userID, next)
	s.sink.Notify(notify.Info("Success", "Profile updated successfully"))
	return next, nil
}

// UploadAvatar stores the image and points the profile at it. The previous
// avatar is removed from the bucket on a best-effort basis.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader) (models.Profile, error) {
	current, err := s.current(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	url, err := s.bucket.Upload(ctx, "avatars", r)
	if err != nil {
		s.sink.Notify(notify.Failure("Error", err.Error()))
		return models.Profile{}, fmt.Errorf("upload avatar: %w", err)
	}
	p, err := s.Update(ctx, userID, models.ProfileUpdate{AvatarURL: &url})
	if err != nil {
		return models.Profile{}, err
	}
	if old := current.AvatarURL; old != "" && old != url {
		if err := s.bucket.Remove(ctx, old); err != nil {
			log.Printf("[profile] remove old avatar %s: %v", old, err)
		}
	}
	return p, nil
}

// Account returns the user row shown on the settings page.
func (s *Service) Account(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// SavePreferences persists the notification preferences.
func (s *Service) SavePreferences(ctx context.Context, userID string, prefs models.Preferences) error {
	if err := s.users.UpdatePreferences(ctx, userID, prefs); err != nil {
		s.sink.Notify(notify.Failure("Error", "Failed to save settings"))
		return err
	}
	s.sink.Notify(notify.Info("Settings saved", "Your notification preferences have been updated"))
	return nil
}

// DeleteAccount always refuses.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	s.sink.Notify(notify.Failure("Feature not implemented", "Account deletion is not available in this demo"))
	return ErrNotAvailable
}

func (s *Service) current(ctx context.Context, userID string) (models.Profile, error) {
	if p, ok := s.cache.Get(userID); ok {
		return p, nil
	}
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Profile{ID: userID}, nil
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return *p, nil
}

// Initials picks two letters for the avatar placeholder: first and last
// name initials, else the first two letters of the name or the email.
func Initials(p models.Profile, email string) string {
	parts := strings.Fields(p.FullName)
	switch {
	case len(parts) >= 2:
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	case len(parts) == 1:
		return strings.ToUpper(prefix(parts[0], 2))
	default:
		return strings.ToUpper(prefix(email, 2))
	}
}

func firstRune(s string) string {
	return prefix(s, 1)
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) < n {
		n = len(r)
	}
	return string(r[:n])
}
