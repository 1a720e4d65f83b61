package services

import (
  "context"
  "fmt"
  "strings"
  "time"
  "golang.org/x/crypto/bcrypt"
  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/repos"
  "github.com/coursepulse/coursepulse-backend/internal/requestdata"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

type JWTClaims struct {
  Role      string `json:"role"`
  SessionID string `json:"session_id"`
  Refresh   bool   `json:"refresh,omitempty"`
  jwt.RegisteredClaims
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User, password string) error
  LoginUser(ctx context.Context, email, password string) (string, string, error)
  RefreshUser(ctx context.Context, refreshToken string) (string, string, error)
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
  db           *gorm.DB
  log          *logger.Logger
  userRepo     repos.UserRepo
  jwtSecretKey string
  accessTTL    time.Duration
  refreshTTL   time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    db:           db,
    log:          serviceLog,
    userRepo:     userRepo,
    jwtSecretKey: jwtSecretKey,
    accessTTL:    accessTTL,
    refreshTTL:   refreshTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User, password string) error {
  user.Email = strings.ToLower(strings.TrimSpace(user.Email))
  if user.Email == "" || !strings.Contains(user.Email, "@") {
    return fmt.Errorf("valid email required")
  }
  if len(password) < 8 {
    return fmt.Errorf("password must be at least 8 characters")
  }
  if user.Role == "" {
    user.Role = types.RoleStudent
  }
  if user.Role != types.RoleStudent && user.Role != types.RoleInstructor {
    return fmt.Errorf("unknown role %q", user.Role)
  }

  existing, err := as.userRepo.GetByEmail(ctx, nil, user.Email)
  if err != nil {
    return fmt.Errorf("Error retrieving user by email: %w", err)
  }
  if existing != nil {
    return fmt.Errorf("email already registered")
  }

  hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
  if err != nil {
    return fmt.Errorf("Failed to hash password: %w", err)
  }
  user.ID = uuid.New()
  user.PasswordHash = string(hash)
  return as.userRepo.Create(ctx, nil, user)
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
  email = strings.ToLower(strings.TrimSpace(email))

  user, err := as.userRepo.GetByEmail(ctx, nil, email)
  if err != nil {
    return "", "", fmt.Errorf("Error retrieving user by email: %w", err)
  }
  if user == nil {
    return "", "", fmt.Errorf("Invalid email")
  }
  if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
    return "", "", fmt.Errorf("Invalid password")
  }

  // one session id per login, stamped onto every event the client sends
  sessionID := uuid.New().String()
  accessToken, err := as.generateToken(user, sessionID, as.accessTTL, false)
  if err != nil {
    return "", "", fmt.Errorf("Failed to generate access token: %w", err)
  }
  refreshToken, err := as.generateToken(user, sessionID, as.refreshTTL, true)
  if err != nil {
    return "", "", fmt.Errorf("Failed to generate refresh token: %w", err)
  }
  return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context, refreshToken string) (string, string, error) {
  claims, err := as.parseToken(refreshToken)
  if err != nil {
    return "", "", err
  }
  if !claims.Refresh {
    return "", "", fmt.Errorf("not a refresh token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return "", "", fmt.Errorf("Invalid user id in token: %w", err)
  }
  user, err := as.userRepo.GetByID(ctx, nil, userID)
  if err != nil {
    return "", "", fmt.Errorf("Error retrieving user: %w", err)
  }
  if user == nil {
    return "", "", fmt.Errorf("user no longer exists")
  }

  newAccess, err := as.generateToken(user, claims.SessionID, as.accessTTL, false)
  if err != nil {
    return "", "", fmt.Errorf("Failed to generate access token: %w", err)
  }
  newRefresh, err := as.generateToken(user, claims.SessionID, as.refreshTTL, true)
  if err != nil {
    return "", "", fmt.Errorf("Failed to generate refresh token: %w", err)
  }
  return newAccess, newRefresh, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, fmt.Errorf("missing token")
  }
  claims, err := as.parseToken(tokenString)
  if err != nil {
    return ctx, err
  }
  if claims.Refresh {
    return ctx, fmt.Errorf("refresh token cannot be used for access")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("Invalid user id in token: %w", err)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    Role:        claims.Role,
    SessionID:   claims.SessionID,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) generateToken(user *types.User, sessionID string, ttl time.Duration, refresh bool) (string, error) {
  claims := JWTClaims{
    Role:      user.Role,
    SessionID: sessionID,
    Refresh:   refresh,
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) parseToken(tokenString string) (*JWTClaims, error) {
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return nil, fmt.Errorf("Failed to parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return nil, fmt.Errorf("Invalid or expired JWT token")
  }
  return claims, nil
}
