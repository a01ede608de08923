// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"healthtrack-go/internal/model"
	"healthtrack-go/internal/repository"
	"healthtrack-go/pkg/hash"
	"healthtrack-go/pkg/log"
	"healthtrack-go/pkg/token"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

// 用户相关的业务错误。
var (
	ErrUsernameTaken       = errors.New("用户名已存在")
	ErrInvalidUsername     = errors.New("用户名不能为空")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// CurrentUser 是通过认证的请求方：身份记录加档案。
type CurrentUser struct {
	User    *model.User    `json:"user"`
	Profile *model.Profile `json:"profile"`
}

// Viewer 返回用于行级访问控制的身份。
func (u *CurrentUser) Viewer() model.Viewer {
	role := model.RolePatient
	if u.Profile != nil {
		role = u.Profile.Role
	}
	return model.Viewer{UserID: u.User.ID, Role: role}
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error)
	// Authenticate 校验 access token 并加载请求方。
	Authenticate(ctx context.Context, tokenString string) (*CurrentUser, *token.CustomClaims, error)
	GetCurrentUser(ctx context.Context, userID string) (*CurrentUser, error)
	UpdateDisplayName(ctx context.Context, viewer model.Viewer, displayName string) (*model.Profile, error)
	Logout(ctx context.Context, tokenString string) error
	RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo       repository.UserRepository
	profileRepo    repository.ProfileRepository
	tokenRepo      repository.TokenRepository
	jwtManager     *token.JWTManager
	adminUsernames []string
}

// NewUserService 创建一个新的 UserService 实例。
// adminUsernames 中的用户名注册时被授予 admin 角色；tokenRepo 可为 nil（不启用黑名单）。
func NewUserService(userRepo repository.UserRepository, profileRepo repository.ProfileRepository, tokenRepo repository.TokenRepository, jwtManager *token.JWTManager, adminUsernames []string) UserService {
	return &userService{
		userRepo:       userRepo,
		profileRepo:    profileRepo,
		tokenRepo:      tokenRepo,
		jwtManager:     jwtManager,
		adminUsernames: adminUsernames,
	}
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	// 1. 检查用户名是否已存在
	_, err := s.userRepo.FindByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, err
	}

	// 3. 在同一事务中创建身份记录和档案
	role := model.RolePatient
	if lo.Contains(s.adminUsernames, username) {
		role = model.RoleAdmin
	}
	newUser := &model.User{Username: username, Password: hashedPassword}
	if err := s.userRepo.CreateWithProfile(ctx, newUser, role); err != nil {
		log.Errorf("[UserService] 注册用户失败, username: %s, error: %v", username, err)
		return nil, fmt.Errorf("注册用户失败: %w", err)
	}
	if role == model.RoleAdmin {
		log.Infof("[UserService] 用户 '%s' 被授予 admin 角色", username)
	}

	return newUser, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(ctx context.Context, username, password string) (accessToken, refreshToken string, err error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", ErrInvalidCredentials
		}
		return "", "", err
	}

	if !hash.CheckPasswordHash(password, user.Password) {
		return "", "", ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (string, string, error) {
	role := model.RolePatient
	if profile, err := s.profileRepo.FindByUserID(ctx, user.ID); err == nil {
		role = profile.Role
	}
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Username, role)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Username, role)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// Authenticate 校验 access token 并加载请求方；角色以数据库中的档案为准。
func (s *userService) Authenticate(ctx context.Context, tokenString string) (*CurrentUser, *token.CustomClaims, error) {
	claims, err := s.jwtManager.VerifyTyped(tokenString, token.TypeAccess)
	if err != nil {
		return nil, nil, err
	}
	if s.tokenRepo != nil {
		revoked, err := s.tokenRepo.IsBlacklisted(ctx, tokenString)
		if err != nil {
			// Redis 不可用时不阻断请求
			log.Warnf("[UserService] 检查 token 黑名单失败: %v", err)
		} else if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}
	current, err := s.GetCurrentUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return current, claims, nil
}

// GetCurrentUser 根据用户 ID 加载身份记录和档案。
func (s *userService) GetCurrentUser(ctx context.Context, userID string) (*CurrentUser, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CurrentUser{User: user, Profile: profile}, nil
}

// UpdateDisplayName 修改当前用户的显示名称。
func (s *userService) UpdateDisplayName(ctx context.Context, viewer model.Viewer, displayName string) (*model.Profile, error) {
	return s.profileRepo.UpdateDisplayName(ctx, viewer, strings.TrimSpace(displayName))
}

// Logout 处理用户登出逻辑，将 token 加入 Redis 黑名单。
// token 的剩余有效期将作为 Redis key 的过期时间。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	if s.tokenRepo == nil {
		return nil
	}
	return s.tokenRepo.Blacklist(ctx, tokenString, time.Until(claims.ExpiresAt.Time))
}

// RefreshToken 验证 refresh token（typ=refresh）并按档案中的当前角色签发新的一对 token。
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (newAccessToken, newRefreshToken string, err error) {
	claims, err := s.jwtManager.VerifyTyped(refreshTokenString, token.TypeRefresh)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", fmt.Errorf("%w: 用户 %s 不存在", ErrInvalidRefreshToken, claims.UserID)
	}
	if err != nil {
		return "", "", err
	}

	return s.issueTokens(ctx, user)
}
