package staff

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
)

const minPasswordLen = 8

var ErrInvalidCredentials = apperr.New(apperr.ErrUnauthorized, "invalid username or password")

type Service struct {
	users       UserRepository
	tokens      *auth.TokenIssuer
	revocations auth.RevocationStore
	logger      zerolog.Logger

	cost      int
	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(users UserRepository, tokens *auth.TokenIssuer, revocations auth.RevocationStore, logger zerolog.Logger) *Service {
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.With().Str("component", "staff").Logger(),
		cost:        bcrypt.DefaultCost,
	}
}

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if len(username) < 3 || strings.ContainsAny(username, " \t") {
		return nil, apperr.Invalidf("username must be at least 3 characters without spaces")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Invalidf("password must be at least %d characters", minPasswordLen)
	}
	if strings.TrimSpace(req.LastName) == "" || strings.TrimSpace(req.FirstName) == "" {
		return nil, apperr.Invalidf("nom and prenom are required")
	}
	if !auth.ValidRole(req.Role) {
		return nil, apperr.Invalidf("role must be one of %s", strings.Join(auth.Roles, ", "))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username:     username,
		PasswordHash: string(hash),
		LastName:     strings.TrimSpace(req.LastName),
		FirstName:    strings.TrimSpace(req.FirstName),
		Role:         auth.NormalizeRole(req.Role),
		Active:       true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.Role).Msg("user created")
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.LastName != nil {
		if strings.TrimSpace(*req.LastName) == "" {
			return nil, apperr.Invalidf("nom cannot be empty")
		}
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.FirstName != nil {
		if strings.TrimSpace(*req.FirstName) == "" {
			return nil, apperr.Invalidf("prenom cannot be empty")
		}
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.Role != nil {
		if !auth.ValidRole(*req.Role) {
			return nil, apperr.Invalidf("role must be one of %s", strings.Join(auth.Roles, ", "))
		}
		u.Role = auth.NormalizeRole(*req.Role)
	}
	if req.Active != nil {
		u.Active = *req.Active
	}
	if req.Password != nil {
		if len(*req.Password) < minPasswordLen {
			return nil, apperr.Invalidf("password must be at least %d characters", minPasswordLen)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.cost)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeactivateUser disables an account. Users are referenced by medical
// records and are never removed. Admins cannot disable themselves.
func (s *Service) DeactivateUser(ctx context.Context, id uuid.UUID) error {
	if id == auth.UserIDFromContext(ctx) {
		return apperr.Conflictf("you cannot deactivate your own account")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.Active {
		return nil
	}
	u.Active = false
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", id.String()).Msg("user deactivated")
	return nil
}

func (s *Service) ListUsers(ctx context.Context, f ListFilter, limit, offset int) ([]*User, int, error) {
	if f.Role != "" {
		f.Role = auth.NormalizeRole(f.Role)
	}
	return s.users.List(ctx, f, limit, offset)
}

// Login checks the credentials and opens a new session.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, apperr.Invalidf("username and password are required")
	}

	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, err
		}
		s.burnCompare(req.Password)
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil || !u.Active {
		s.logger.Warn().Str("username", u.Username).Msg("failed login")
		return nil, ErrInvalidCredentials
	}

	token, session, err := s.tokens.Issue(u.ID, u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("session_id", session.ID).Msg("login")
	return &LoginResponse{Token: token, Session: session, User: u}, nil
}

// burnCompare spends the same time as a real password check so unknown
// usernames cannot be told apart by latency.
func (s *Service) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}

// Logout revokes the session so its token stops working before expiry.
func (s *Service) Logout(ctx context.Context, session *auth.Session) error {
	if session == nil {
		return apperr.New(apperr.ErrUnauthorized, "authentication required")
	}
	if err := s.revocations.Revoke(ctx, session.ID, session.ExpiresAt); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", session.UserID.String()).Str("session_id", session.ID).Msg("logout")
	return nil
}

// Me returns the account behind the session.
func (s *Service) Me(ctx context.Context, session *auth.Session) (*User, error) {
	if session == nil {
		return nil, apperr.New(apperr.ErrUnauthorized, "authentication required")
	}
	if session.UserID == auth.DevUserID {
		return &User{ID: auth.DevUserID, Username: session.Username, Role: session.Role, Active: true}, nil
	}
	return s.users.GetByID(ctx, session.UserID)
}
