package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"dokan/internal/access"
	"dokan/internal/auth"
	"dokan/internal/domain"
	"dokan/internal/session"
	"dokan/internal/xid"
)

func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (domain.UserProfile, error) {
	profile, err := s.auth.Signup(ctx, req)
	if err != nil {
		return domain.UserProfile{}, err
	}
	s.logger.Info("shop registered", "profile_id", profile.ID)
	return profile.Redacted(), nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	res, err := s.auth.Login(ctx, req)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	s.refreshCredentials(res.Profile)

	st, err := s.sessions.Open(ctx, res.Profile.ID)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken:   res.Token,
		ExpiresAt:     res.ExpiresAt.Format(time.RFC3339),
		Role:          res.Actor.Role,
		ModeratorName: res.Actor.ModeratorName,
		Profile:       st.Get().Profile.Redacted(),
	}, nil
}

// Logout saves the actor's shop one last time and closes its session. When
// the save fails the session stays open so nothing unsaved is dropped.
func (s *Service) Logout(ctx context.Context) error {
	actor, st, err := s.open(ctx, access.Read)
	if err != nil {
		return err
	}
	if err := s.persist(ctx, st); err != nil {
		return err
	}
	s.sessions.Discard(actor.ProfileID)
	return nil
}

func (s *Service) ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) error {
	return s.auth.ForgotPassword(ctx, req)
}

func (s *Service) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	profile, err := s.auth.ResetPassword(ctx, req)
	if err != nil {
		return err
	}
	s.refreshCredentials(profile)
	return nil
}

// refreshCredentials copies credential hashes written by the auth manager
// into an open session, so a later save does not bring back old values.
func (s *Service) refreshCredentials(profile domain.UserProfile) {
	st, ok := s.sessions.Lookup(profile.ID)
	if !ok {
		return
	}
	cur := st.Get().Profile
	if cur.Password == profile.Password && cur.SecretCode == profile.SecretCode {
		return
	}
	_, _ = st.Mutate(func(state *session.State) error {
		state.Profile.Password = profile.Password
		state.Profile.SecretCode = profile.SecretCode
		return nil
	})
}

func (s *Service) Profile(ctx context.Context) (domain.UserProfile, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return st.Profile.Redacted(), nil
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileUpdateRequest) (domain.UserProfile, error) {
	if err := domain.Validate(req); err != nil {
		return domain.UserProfile{}, err
	}
	next, err := s.mutate(ctx, access.ManageProfile, func(_ domain.Actor, st *session.State) error {
		p := &st.Profile
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.Validation("name", "is required")
			}
			p.Name = name
		}
		if req.Mobile != nil {
			p.Mobile = strings.TrimSpace(*req.Mobile)
		}
		if req.Currency != nil {
			currency := strings.TrimSpace(*req.Currency)
			if currency == "" {
				return domain.Validation("currency", "is required")
			}
			p.Currency = currency
		}
		if req.PrimaryColor != nil {
			p.PrimaryColor = strings.TrimSpace(*req.PrimaryColor)
		}
		if req.ProfilePic != nil {
			p.ProfilePic = *req.ProfilePic
		}
		if req.UIConfig != nil {
			p.UIConfig = req.UIConfig
		}
		return nil
	})
	if err != nil && !IsWarning(err) {
		return domain.UserProfile{}, err
	}
	return next.Profile.Redacted(), err
}

func (s *Service) ListModerators(ctx context.Context) ([]domain.Moderator, error) {
	_, st, err := s.open(ctx, access.ManageModerators)
	if err != nil {
		return nil, err
	}
	return st.Get().Profile.Moderators, nil
}

// AddModerator registers a moderator login. The (email, code) pair must be
// unused by every shop, since moderator login picks the first match.
func (s *Service) AddModerator(ctx context.Context, req domain.ModeratorCreateRequest) (domain.Moderator, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if err := domain.Validate(req); err != nil {
		return domain.Moderator{}, err
	}
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return domain.Moderator{}, domain.AuthFailed()
	}
	if err := access.Authorize(actor.Role, access.ManageModerators); err != nil {
		return domain.Moderator{}, err
	}
	taken, err := s.auth.ModeratorTaken(ctx, req.Email, req.Code, actor.ProfileID)
	if err != nil {
		return domain.Moderator{}, err
	}
	if taken {
		return domain.Moderator{}, domain.Duplicate("moderator email and code already in use")
	}

	mod := domain.Moderator{ID: xid.New("M"), Name: req.Name, Email: req.Email, Code: req.Code}
	_, err = s.mutate(ctx, access.ManageModerators, func(_ domain.Actor, st *session.State) error {
		for _, existing := range st.Profile.Moderators {
			if domain.NormalizeEmail(existing.Email) == domain.NormalizeEmail(mod.Email) && existing.Code == mod.Code {
				return domain.Duplicate("moderator email and code already in use")
			}
		}
		st.Profile.Moderators = append(st.Profile.Moderators, mod)
		return nil
	})
	if err != nil && !IsWarning(err) {
		return domain.Moderator{}, err
	}
	return mod, err
}

func (s *Service) RemoveModerator(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, access.ManageModerators, func(_ domain.Actor, st *session.State) error {
		i := slices.IndexFunc(st.Profile.Moderators, func(m domain.Moderator) bool { return m.ID == id })
		if i < 0 {
			return domain.NotFound("moderator")
		}
		st.Profile.Moderators = slices.Delete(st.Profile.Moderators, i, i+1)
		return nil
	})
	return err
}

func (s *Service) ListPartners(ctx context.Context) ([]domain.Partner, error) {
	_, st, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return st.Profile.Partners, nil
}

func (s *Service) AddPartner(ctx context.Context, req domain.PartnerCreateRequest) (domain.Partner, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := domain.Validate(req); err != nil {
		return domain.Partner{}, err
	}
	if req.Share.IsNegative() {
		return domain.Partner{}, domain.Validation("share", "must be 0 or more")
	}
	partner := domain.Partner{ID: xid.New("PT"), Name: req.Name, Mobile: strings.TrimSpace(req.Mobile), Share: req.Share}
	_, err := s.mutate(ctx, access.ManageProfile, func(_ domain.Actor, st *session.State) error {
		st.Profile.Partners = append(st.Profile.Partners, partner)
		return nil
	})
	if err != nil && !IsWarning(err) {
		return domain.Partner{}, err
	}
	return partner, err
}

func (s *Service) RemovePartner(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, access.ManageProfile, func(_ domain.Actor, st *session.State) error {
		i := slices.IndexFunc(st.Profile.Partners, func(p domain.Partner) bool { return p.ID == id })
		if i < 0 {
			return domain.NotFound("partner")
		}
		st.Profile.Partners = slices.Delete(st.Profile.Partners, i, i+1)
		return nil
	})
	return err
}

// Reset wipes the ledger, products and sales of the actor's shop when code
// matches the secret code. A wrong code reports false and changes nothing.
func (s *Service) Reset(ctx context.Context, req domain.ResetRequest) (domain.ResetResponse, error) {
	if err := domain.Validate(req); err != nil {
		return domain.ResetResponse{}, err
	}
	matched := false
	_, err := s.mutate(ctx, access.ResetSystem, func(_ domain.Actor, st *session.State) error {
		ok, upgraded := auth.VerifySecret(st.Profile.SecretCode, req.SecretCode)
		if !ok {
			return errWrongSecret
		}
		matched = true
		if upgraded != "" {
			st.Profile.SecretCode = upgraded
		}
		st.Transactions = []domain.Transaction{}
		st.Profile.Products = []domain.Product{}
		st.Profile.Sales = []domain.SaleRecord{}
		return nil
	})
	if err == errWrongSecret {
		return domain.ResetResponse{Success: false}, nil
	}
	if err != nil && !IsWarning(err) {
		return domain.ResetResponse{}, err
	}
	resp := domain.ResetResponse{Success: matched}
	if err != nil {
		resp.Warning = err.Error()
	}
	return resp, nil
}

var errWrongSecret = domain.AuthFailed()
