package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"go.uber.org/zap"
)

// Profile is the stored record for a user
type Profile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
	IsActive    bool   `json:"isActive"`
	CreatedAt   string `json:"createdAt"`
	LastLoginAt string `json:"lastLoginAt"`
}

func profileFromDocument(d models.Document) Profile {
	p := Profile{
		UID:         models.ToString(d["uid"]),
		Email:       models.ToString(d["email"]),
		FirstName:   models.ToString(d["firstName"]),
		LastName:    models.ToString(d["lastName"]),
		DisplayName: models.ToString(d["displayName"]),
		Role:        models.ToString(d["role"]),
		IsActive:    models.ToBool(d["isActive"]),
		CreatedAt:   models.ToString(d["createdAt"]),
		LastLoginAt: models.ToString(d["lastLoginAt"]),
	}
	if p.UID == "" {
		p.UID = d.ID()
	}
	return p
}

// Profiles keeps user profiles in the users collection. The stored role
// is authoritative over the role claimed by the token.
type Profiles struct {
	store  store.DocumentStore
	logger *zap.Logger
}

func NewProfiles(st store.DocumentStore) *Profiles {
	return &Profiles{store: st, logger: util.GetLogger()}
}

// Resolve loads the profile for id, creating one from the token claims on
// first sight, and returns id with the stored role applied
func (p *Profiles) Resolve(ctx context.Context, id *Identity) (*Identity, error) {
	doc, err := p.store.Get(ctx, models.CollectionUsers, id.UID)
	if errors.Is(err, store.ErrNotFound) {
		prof, err := p.create(ctx, id)
		if err != nil {
			return nil, err
		}
		return withRole(id, prof.Role), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", id.UID, err)
	}

	prof := profileFromDocument(doc)
	if doc["isActive"] != nil && !prof.IsActive {
		return nil, NewProviderError("auth/user-disabled", ErrForbidden)
	}
	return withRole(id, prof.Role), nil
}

// Get returns the stored profile
func (p *Profiles) Get(ctx context.Context, uid string) (*Profile, error) {
	doc, err := p.store.Get(ctx, models.CollectionUsers, uid)
	if err != nil {
		return nil, err
	}
	prof := profileFromDocument(doc)
	return &prof, nil
}

// SetRole changes a user's role
func (p *Profiles) SetRole(ctx context.Context, uid, role string) error {
	switch role {
	case RoleAdmin, RoleManager, RoleUser:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return p.store.Update(ctx, models.CollectionUsers, uid, models.Document{
		"role":      role,
		"updatedAt": models.FormatTime(time.Now()),
	})
}

// TouchLogin records the login time; failures are only logged
func (p *Profiles) TouchLogin(ctx context.Context, uid string) {
	err := p.store.Update(ctx, models.CollectionUsers, uid, models.Document{
		"lastLoginAt": models.FormatTime(time.Now()),
	})
	if err != nil {
		p.logger.Warn("Error updating last login", zap.String("uid", uid), zap.Error(err))
	}
}

func (p *Profiles) create(ctx context.Context, id *Identity) (Profile, error) {
	first, last, _ := strings.Cut(id.DisplayName, " ")
	now := models.FormatTime(time.Now())
	role := id.Role
	if role == "" {
		role = RoleUser
	}
	prof := Profile{
		UID:         id.UID,
		Email:       id.Email,
		FirstName:   first,
		LastName:    last,
		DisplayName: id.DisplayName,
		Role:        role,
		IsActive:    true,
		CreatedAt:   now,
		LastLoginAt: now,
	}
	err := p.store.Set(ctx, models.CollectionUsers, id.UID, models.Document{
		"uid":           prof.UID,
		"email":         prof.Email,
		"firstName":     prof.FirstName,
		"lastName":      prof.LastName,
		"displayName":   prof.DisplayName,
		"role":          prof.Role,
		"isActive":      prof.IsActive,
		"emailVerified": id.EmailVerified,
		"createdAt":     prof.CreatedAt,
		"lastLoginAt":   prof.LastLoginAt,
		"preferences": map[string]any{
			"theme":         "light",
			"notifications": true,
			"language":      "en",
		},
	})
	if err != nil {
		return prof, fmt.Errorf("failed to create profile %s: %w", id.UID, err)
	}
	p.logger.Info("Auto-created missing user profile", zap.String("uid", id.UID))
	return prof, nil
}

func withRole(id *Identity, role string) *Identity {
	out := *id
	if role != "" {
		out.Role = role
	}
	return &out
}
