package auth

import (
	"context"
	"errors"
	"fmt"

	apperrors "teslo/internal/errors"
	"teslo/internal/models"
	"teslo/internal/storage"
)

// Credential errors. The messages are returned to clients verbatim.
var (
	ErrBadEmail     = apperrors.Public(apperrors.ErrUnauthorized, "Credentials are not valid (email)")
	ErrBadPassword  = apperrors.Public(apperrors.ErrUnauthorized, "Credentials are not valid (password)")
	ErrWeakPassword = apperrors.Public(apperrors.ErrInvalidInput, "The password must have a Uppercase, lowercase letter and a number")
	ErrUserInactive = apperrors.Public(apperrors.ErrInactiveUser, "User is not active")
)

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	FullName string `json:"fullName" binding:"required,min=1"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
}

// Result is a user together with a freshly issued token.
type Result struct {
	*models.User
	Token string `json:"token"`
}

// Service implements registration, login and token-based user resolution.
// It also serves as the token verifier and user directory of the chat gateway.
type Service struct {
	store  storage.Store
	tokens *TokenManager
}

func NewService(store storage.Store, tokens *TokenManager) *Service {
	return &Service{store: store, tokens: tokens}
}

func (s *Service) Register(in RegisterInput) (*Result, error) {
	if !StrongPassword(in.Password) {
		return nil, ErrWeakPassword
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:    in.Email,
		Password: hash,
		FullName: in.FullName,
		IsActive: true,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}
	return s.result(user)
}

func (s *Service) Login(in LoginInput) (*Result, error) {
	user, err := s.store.GetUserByEmail(in.Email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrBadEmail
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(user.Password, in.Password) {
		return nil, ErrBadPassword
	}
	return s.result(user)
}

// CheckStatus re-issues a token for an already authenticated user.
func (s *Service) CheckStatus(user *models.User) (*Result, error) {
	return s.result(user)
}

// Authenticate resolves a raw token to an active user.
func (s *Service) Authenticate(token string) (*models.User, error) {
	userID, err := s.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	return s.FindActiveUser(context.Background(), userID)
}

// VerifyToken returns the user id carried by a valid token.
func (s *Service) VerifyToken(token string) (string, error) {
	if token == "" {
		return "", ErrInvalidToken
	}
	return s.tokens.Verify(token)
}

// FindActiveUser loads a user and rejects unknown or inactive ones.
func (s *Service) FindActiveUser(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("user %s: %w", userID, ErrUserInactive)
	}
	return user, nil
}

func (s *Service) result(user *models.User) (*Result, error) {
	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Result{User: user, Token: token}, nil
}
