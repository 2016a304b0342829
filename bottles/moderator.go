package bottles

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/bottle-ledger/auth"
	"github.com/warp/bottle-ledger/ledger"
)

// =============================================================================
// MODERATORS
// =============================================================================

type ModeratorInput struct {
	Name     string
	Phone    string
	Password string // empty on update keeps the current password
	Areas    []string
	Active   bool
}

func (s *Service) CreateModerator(ctx context.Context, in ModeratorInput) (ledger.Moderator, error) {
	if err := requireAdmin(ctx); err != nil {
		return ledger.Moderator{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Moderator{}, &ledger.InputError{Field: "name", Reason: "is required"}
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return ledger.Moderator{}, &ledger.InputError{Field: "password", Reason: err.Error()}
	}
	now := s.timestamp()
	m := ledger.Moderator{
		ID:           s.newID(),
		Name:         name,
		Phone:        in.Phone,
		PasswordHash: hash,
		Areas:        in.Areas,
		Active:       in.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.atomically(ctx, "create_moderator", func(tx ledger.Store) error {
		return tx.SaveModerator(ctx, m)
	})
	if err != nil {
		return ledger.Moderator{}, err
	}
	s.log.Info("moderator created", zap.String("moderator_id", m.ID), zap.String("name", m.Name))
	return m, nil
}

func (s *Service) UpdateModerator(ctx context.Context, id string, in ModeratorInput) (ledger.Moderator, error) {
	if err := requireAdmin(ctx); err != nil {
		return ledger.Moderator{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ledger.Moderator{}, &ledger.InputError{Field: "name", Reason: "is required"}
	}
	var hash string
	if in.Password != "" {
		h, err := auth.HashPassword(in.Password)
		if err != nil {
			return ledger.Moderator{}, &ledger.InputError{Field: "password", Reason: err.Error()}
		}
		hash = h
	}

	var out ledger.Moderator
	err := s.atomically(ctx, "update_moderator", func(tx ledger.Store) error {
		m, err := loadModerator(ctx, tx, id)
		if err != nil {
			return err
		}
		m.Name = name
		m.Phone = in.Phone
		m.Areas = in.Areas
		m.Active = in.Active
		if hash != "" {
			m.PasswordHash = hash
		}
		m.UpdatedAt = s.timestamp()
		if err := tx.SaveModerator(ctx, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return ledger.Moderator{}, err
	}
	s.log.Info("moderator updated", zap.String("moderator_id", id))
	return out, nil
}

// DeleteModerator removes a moderator who holds no bottles on an open day.
func (s *Service) DeleteModerator(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	err := s.atomically(ctx, "delete_moderator", func(tx ledger.Store) error {
		if _, err := loadModerator(ctx, tx, id); err != nil {
			return err
		}
		days, err := tx.ListUsage(ctx, ledger.ListFilter{ModeratorID: id})
		if err != nil {
			return fmt.Errorf("list bottle usage: %w", err)
		}
		for _, u := range days {
			if !u.Done && u.Filled+u.Refilled > u.Returned() {
				return &ledger.ConflictError{
					Entity: "moderator",
					Reason: "still holds bottles for " + ledger.DayKey(u.Day),
				}
			}
		}
		return tx.DeleteModerator(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("moderator deleted", zap.String("moderator_id", id))
	return nil
}

func (s *Service) ListModerators(ctx context.Context) ([]ledger.Moderator, error) {
	return s.store.ListModerators(ctx)
}

// =============================================================================
// LOGIN
// =============================================================================

// EnsureAdmin creates the admin account if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	existing, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("admin password: %w", err)
	}
	a := ledger.Admin{ID: s.newID(), Email: email, PasswordHash: hash, CreatedAt: s.timestamp()}
	if err := s.store.SaveAdmin(ctx, a); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	s.log.Info("admin account created", zap.String("email", email))
	return nil
}

// LoginAdmin checks admin credentials. Unknown accounts and bad passwords
// fail the same way.
func (s *Service) LoginAdmin(ctx context.Context, email, password string) (auth.Actor, error) {
	a, err := s.store.GetAdminByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return auth.Actor{}, err
	}
	if a == nil {
		return auth.Actor{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(a.PasswordHash, password); err != nil {
		return auth.Actor{}, err
	}
	return auth.Actor{ID: a.ID, Role: ledger.RoleAdmin, Name: a.Email}, nil
}

// LoginModerator checks moderator credentials by name. Inactive moderators
// cannot log in.
func (s *Service) LoginModerator(ctx context.Context, name, password string) (auth.Actor, error) {
	m, err := s.store.GetModeratorByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return auth.Actor{}, err
	}
	if m == nil {
		return auth.Actor{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(m.PasswordHash, password); err != nil {
		return auth.Actor{}, err
	}
	if !m.Active {
		return auth.Actor{}, fmt.Errorf("%w: moderator is inactive", auth.ErrInvalidCredentials)
	}
	return auth.Actor{ID: m.ID, Role: ledger.RoleModerator, Name: m.Name}, nil
}
