package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/chaintrack/chaintrack-backend/internal/logger"
  "github.com/chaintrack/chaintrack-backend/internal/repos"
  "github.com/chaintrack/chaintrack-backend/internal/types"
  "github.com/chaintrack/chaintrack-backend/internal/utils"
)

type JWTClaims struct {
  IsAdmin bool `json:"is_admin"`
  jwt.RegisteredClaims
}

// IssuedAPIKey carries the plaintext exactly once, at creation time.
type IssuedAPIKey struct {
  Key    *types.APIKey `json:"key"`
  Secret string        `json:"secret"`
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User) (*types.User, error)
  LoginUser(ctx context.Context, usernameOrEmail, password string) (string, *types.User, error)
  ValidateToken(ctx context.Context, tokenString string) (*types.User, error)
  IssueAPIKey(ctx context.Context, userID uuid.UUID, name, description string, expiresAt *time.Time) (*IssuedAPIKey, error)
  ValidateAPIKey(ctx context.Context, plaintext string) (*types.User, error)
  RevokeAPIKey(ctx context.Context, userID, keyID uuid.UUID) error
}

type authService struct {
  db           *gorm.DB
  log          *logger.Logger
  userRepo     repos.UserRepo
  apiKeyRepo   repos.APIKeyRepo
  jwtSecretKey string
  accessTTL    time.Duration
}

func NewAuthService(
  db *gorm.DB,
  baseLog *logger.Logger,
  userRepo repos.UserRepo,
  apiKeyRepo repos.APIKeyRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
) AuthService {
  serviceLog := baseLog.With("service", "AuthService")
  return &authService{
    db:           db,
    log:          serviceLog,
    userRepo:     userRepo,
    apiKeyRepo:   apiKeyRepo,
    jwtSecretKey: jwtSecretKey,
    accessTTL:    accessTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) (*types.User, error) {
  user.Email = strings.ToLower(strings.TrimSpace(user.Email))
  user.Username = strings.TrimSpace(user.Username)
  if user.Username == "" || user.Email == "" {
    return nil, fmt.Errorf("username and email are required")
  }

  exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
  if err != nil {
    return nil, fmt.Errorf("check email: %w", err)
  }
  if exists {
    return nil, fmt.Errorf("email already registered")
  }

  hashed, err := utils.HashPassword(user.Password)
  if err != nil {
    return nil, err
  }
  user.Password = hashed
  user.ID = uuid.New()
  user.IsActive = true

  created, err := as.userRepo.Create(ctx, nil, user)
  if err != nil {
    return nil, fmt.Errorf("create user: %w", err)
  }
  return created, nil
}

func (as *authService) LoginUser(ctx context.Context, usernameOrEmail, password string) (string, *types.User, error) {
  identifier := strings.ToLower(strings.TrimSpace(usernameOrEmail))
  user, err := as.userRepo.GetByEmail(ctx, nil, identifier)
  if err != nil {
    return "", nil, fmt.Errorf("load user: %w", err)
  }
  if user == nil || !user.IsActive {
    return "", nil, fmt.Errorf("invalid credentials")
  }
  if !utils.CheckPassword(user.Password, password) {
    return "", nil, fmt.Errorf("invalid credentials")
  }

  token, err := as.generateAccessToken(user)
  if err != nil {
    return "", nil, fmt.Errorf("sign token: %w", err)
  }

  if err := as.userRepo.TouchLastLogin(ctx, nil, user.ID); err != nil {
    as.log.Warn("Failed to record last login", "user_id", user.ID, "error", err.Error())
  }
  return token, user, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  claims := JWTClaims{
    IsAdmin: user.IsAdmin,
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) ValidateToken(ctx context.Context, tokenString string) (*types.User, error) {
  parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil || !parsed.Valid {
    return nil, fmt.Errorf("invalid token")
  }
  claims, ok := parsed.Claims.(*JWTClaims)
  if !ok {
    return nil, fmt.Errorf("invalid token claims")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return nil, fmt.Errorf("invalid token subject")
  }

  user, err := as.userRepo.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, fmt.Errorf("load user: %w", err)
  }
  if !user.IsActive {
    return nil, fmt.Errorf("user deactivated")
  }
  return user, nil
}

func (as *authService) IssueAPIKey(ctx context.Context, userID uuid.UUID, name, description string, expiresAt *time.Time) (*IssuedAPIKey, error) {
  plaintext, digest, err := utils.GenerateAPIKey()
  if err != nil {
    return nil, err
  }

  key := &types.APIKey{
    ID:          uuid.New(),
    UserID:      userID,
    KeyHash:     digest,
    KeyPrefix:   plaintext[:10],
    Name:        strings.TrimSpace(name),
    Description: strings.TrimSpace(description),
    ExpiresAt:   expiresAt,
    IsActive:    true,
  }
  created, err := as.apiKeyRepo.Create(ctx, nil, key)
  if err != nil {
    return nil, fmt.Errorf("create api key: %w", err)
  }
  return &IssuedAPIKey{Key: created, Secret: plaintext}, nil
}

func (as *authService) ValidateAPIKey(ctx context.Context, plaintext string) (*types.User, error) {
  trimmed := strings.TrimSpace(plaintext)
  if trimmed == "" {
    return nil, fmt.Errorf("missing api key")
  }

  key, err := as.apiKeyRepo.GetByHash(ctx, nil, utils.HashAPIKey(trimmed))
  if err != nil {
    return nil, fmt.Errorf("load api key: %w", err)
  }
  if key == nil {
    return nil, fmt.Errorf("invalid api key")
  }
  if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
    return nil, fmt.Errorf("api key expired")
  }

  user, err := as.userRepo.GetByID(ctx, nil, key.UserID)
  if err != nil {
    return nil, fmt.Errorf("load key owner: %w", err)
  }
  if !user.IsActive {
    return nil, fmt.Errorf("user deactivated")
  }

  if err := as.apiKeyRepo.TouchLastUsed(ctx, nil, key.ID); err != nil {
    as.log.Warn("Failed to record api key usage", "key_id", key.ID, "error", err.Error())
  }
  return user, nil
}

func (as *authService) RevokeAPIKey(ctx context.Context, userID, keyID uuid.UUID) error {
  key, err := as.apiKeyRepo.GetByID(ctx, nil, keyID)
  if err != nil {
    return fmt.Errorf("load api key: %w", err)
  }
  if key.UserID != userID {
    return fmt.Errorf("api key does not belong to user")
  }
  return as.apiKeyRepo.Revoke(ctx, nil, keyID)
}
