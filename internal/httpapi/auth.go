package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tarpaulin/backend/internal/access"
	"tarpaulin/backend/internal/domain"
	"tarpaulin/backend/internal/store"
)

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errAccountInactive    = errors.New("account is inactive")
)

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
	resolver  *access.Resolver
}

type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
}

type tarpaulinClaims struct {
	jwtlib.RegisteredClaims
	Email string `json:"email"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore, resolver *access.Resolver) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
		resolver:  resolver,
	}
}

// Login checks the email and password and issues a bearer token whose subject
// is the user id.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	user, err := a.userStore.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("load user: %w", err)
	}
	if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, errAccountInactive
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user.ID, user.Email, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	acc, err := a.resolver.Resolve(ctx, user.ID)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		UserID:      user.ID,
		IsAdmin:     acc.IsAdmin,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &tarpaulinClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UserID: sub, Email: claims.Email}, nil
}

func (a *AuthManager) sign(userID, email string, expiresAt time.Time) (string, error) {
	claims := tarpaulinClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "tarpaulin",
		},
		Email: email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// CreateUser adds a login for a worker or another admin. Callers check that
// the actor is an admin.
func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserView, error) {
	verr := &domain.ValidationError{}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		verr.Add("email", "must be a valid email address")
	}
	if len(req.Password) < 8 {
		verr.Add("password", "must be at least 8 characters")
	}
	roleID := strings.TrimSpace(req.RoleID)
	if roleID == "" {
		verr.Add("role_id", "is required")
	} else if _, err := a.userStore.GetRole(ctx, roleID); errors.Is(err, store.ErrNotFound) {
		verr.Add("role_id", "unknown role")
	} else if err != nil {
		return domain.UserView{}, fmt.Errorf("load role: %w", err)
	}
	if !verr.Empty() {
		return domain.UserView{}, verr
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserView{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := a.userStore.CreateUser(ctx, domain.UserAccount{
		Email:    email,
		Password: passwordHash,
		RoleID:   roleID,
		Active:   true,
	})
	if err != nil {
		return domain.UserView{}, err
	}
	return userView(*created), nil
}

// EnsureAdmin creates the first admin login on an empty database. It does
// nothing when the email is already registered.
func (a *AuthManager) EnsureAdmin(ctx context.Context, email string, password string) (bool, error) {
	_, err := a.userStore.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("load user: %w", err)
	}
	if _, err := a.CreateUser(ctx, domain.UserCreateRequest{Email: email, Password: password, RoleID: domain.AdminRoleID}); err != nil {
		return false, err
	}
	return true, nil
}

func (a *AuthManager) ListUsers(ctx context.Context) ([]domain.UserView, error) {
	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.UserView, 0, len(users))
	for _, user := range users {
		result = append(result, userView(user))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Email < result[j].Email
	})
	return result, nil
}

func userView(user domain.UserAccount) domain.UserView {
	return domain.UserView{
		ID:        user.ID,
		Email:     user.Email,
		RoleID:    user.RoleID,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
