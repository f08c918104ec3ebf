package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"AgentPedia/internal/config"
	"AgentPedia/internal/modules/user/application/dto/request"
	"AgentPedia/internal/modules/user/application/dto/respond"
	"AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/internal/modules/user/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/util"
	"AgentPedia/pkg/util/myjwt"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBadCredentials = xerr.New(xerr.Unauthorized, "用户名或密码错误")
	ErrAccountLocked  = xerr.New(xerr.Forbidden, "账户已锁定，请稍后再试")
	ErrAccountBlocked = xerr.New(xerr.Forbidden, "账户未激活或已停用")
	ErrWeakPassword   = xerr.New(xerr.BadRequest, "密码必须同时包含字母和数字")
)

// RoleAssigner 将 users.role 同步到 RBAC 角色分配，previous 为空表示新用户
type RoleAssigner func(ctx context.Context, userID int64, role, previous string, grantedBy int64) error

// StatsCollector 由其他模块填充各自的统计项
type StatsCollector func(ctx context.Context, userID int64, stats *respond.UserStats) error

type UserInfoService interface {
	Register(ctx context.Context, req request.RegisterRequest) (*entity.UserInfo, error)
	Login(ctx context.Context, req request.LoginRequest, ip string) (*respond.LoginRespond, error)
	Refresh(ctx context.Context, refreshToken string) (*myjwt.TokenPair, error)
	Me(ctx context.Context, who caller.Caller) (*entity.UserInfo, error)
	UpdateMe(ctx context.Context, who caller.Caller, req request.UpdateMeRequest) (*entity.UserInfo, error)
	ChangePassword(ctx context.Context, who caller.Caller, req request.ChangePasswordRequest) error
	Stats(ctx context.Context, who caller.Caller) (*respond.UserStats, error)

	List(ctx context.Context, req request.ListUsersRequest, who caller.Caller) ([]entity.UserInfo, int64, error)
	Get(ctx context.Context, id int64, who caller.Caller) (*entity.UserInfo, error)
	Update(ctx context.Context, id int64, req request.AdminUpdateUserRequest, who caller.Caller) (*entity.UserInfo, error)
	SetStatus(ctx context.Context, id int64, status string, who caller.Caller) error
	Delete(ctx context.Context, id int64, who caller.Caller) error

	// PromoteSuperAdmin 运维初始化用，不做调用方鉴权
	PromoteSuperAdmin(ctx context.Context, username string) (*entity.UserInfo, error)
}

type userInfoServiceImpl struct {
	repo       repository.UserInfoRepository
	roles      RoleAssigner
	collectors []StatsCollector
	now        func() time.Time
}

// NewUserInfoService roles 可为 nil
func NewUserInfoService(repo repository.UserInfoRepository, roles RoleAssigner, collectors ...StatsCollector) UserInfoService {
	return &userInfoServiceImpl{
		repo:       repo,
		roles:      roles,
		collectors: collectors,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (u *userInfoServiceImpl) Register(ctx context.Context, req request.RegisterRequest) (*entity.UserInfo, error) {
	if !util.StrongPassword(req.Password) {
		return nil, ErrWeakPassword
	}
	existing, err := u.repo.GetUserInfoByUsernameOrEmail(ctx, req.Username, req.Email)
	if err == nil {
		if existing.Username == req.Username {
			return nil, xerr.Conflictf("用户名已存在")
		}
		return nil, xerr.Conflictf("邮箱已存在")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		zlog.Error("查询用户失败", zap.Error(err), zap.String("username", req.Username))
		return nil, xerr.ErrServerError
	}

	hashed, err := util.HashPassword(req.Password)
	if err != nil {
		zlog.Error("密码加密失败", zap.Error(err))
		return nil, xerr.ErrServerError
	}
	now := u.now()
	user := &entity.UserInfo{
		Username:          req.Username,
		Email:             strings.ToLower(req.Email),
		Password:          hashed,
		FullName:          req.FullName,
		Bio:               req.Bio,
		AvatarUrl:         req.AvatarUrl,
		Timezone:          defaultStr(req.Timezone, "UTC"),
		Language:          defaultStr(req.Language, "en"),
		Theme:             defaultStr(req.Theme, "light"),
		Role:              caller.RoleUser,
		Status:            entity.StatusActive,
		PasswordChangedAt: now,
	}
	if err := u.repo.CreateUserInfo(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, xerr.Conflictf("用户名或邮箱已存在")
		}
		zlog.Error("创建用户失败", zap.Error(err), zap.String("username", req.Username))
		return nil, xerr.ErrServerError
	}
	if u.roles != nil {
		if err := u.roles(ctx, user.Id, caller.RoleUser, "", 0); err != nil {
			zlog.Warn("分配默认角色失败", zap.Error(err), zap.Int64("user_id", user.Id))
		}
	}
	zlog.Info("用户注册", zap.Int64("user_id", user.Id), zap.String("username", user.Username))
	return user, nil
}

func (u *userInfoServiceImpl) Login(ctx context.Context, req request.LoginRequest, ip string) (*respond.LoginRespond, error) {
	user, err := u.repo.GetUserInfoByUsernameOrEmail(ctx, req.Username, strings.ToLower(req.Username))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		zlog.Error("查询用户失败", zap.Error(err), zap.String("username", req.Username))
		return nil, xerr.ErrServerError
	}

	now := u.now()
	if user.Locked(now) {
		return nil, ErrAccountLocked
	}
	if !util.CheckPassword(user.Password, req.Password) {
		u.recordFailedLogin(ctx, user, now)
		return nil, ErrBadCredentials
	}
	if !user.Active() {
		return nil, ErrAccountBlocked
	}

	fields := map[string]interface{}{
		"last_login_at":         now,
		"last_login_ip":         ip,
		"login_count":           gorm.Expr("login_count + ?", 1),
		"failed_login_attempts": 0,
		"locked_until":          nil,
	}
	if err := u.repo.UpdateUserInfo(ctx, user.Id, fields); err != nil {
		zlog.Error("更新登录信息失败", zap.Error(err), zap.Int64("user_id", user.Id))
		return nil, xerr.ErrServerError
	}
	user.LastLoginAt, user.LastLoginIp = &now, ip
	user.LoginCount++
	user.FailedLoginAttempts, user.LockedUntil = 0, nil

	pair, err := myjwt.GenerateTokenPair(user.Id, user.Username, user.Role)
	if err != nil {
		zlog.Error("签发令牌失败", zap.Error(err), zap.Int64("user_id", user.Id))
		return nil, xerr.ErrServerError
	}
	return &respond.LoginRespond{TokenPair: pair, User: user}, nil
}

// recordFailedLogin 连续失败达到上限后锁定
func (u *userInfoServiceImpl) recordFailedLogin(ctx context.Context, user *entity.UserInfo, now time.Time) {
	sec := config.GetConfig().SecurityConfig
	attempts := user.FailedLoginAttempts + 1
	fields := map[string]interface{}{"failed_login_attempts": attempts}
	if attempts >= sec.MaxLoginAttempts {
		fields["locked_until"] = now.Add(time.Duration(sec.LockMinutes) * time.Minute)
		fields["failed_login_attempts"] = 0
		zlog.Warn("登录失败次数过多，锁定账户", zap.Int64("user_id", user.Id), zap.Int("attempts", attempts))
	}
	if err := u.repo.UpdateUserInfo(ctx, user.Id, fields); err != nil {
		zlog.Error("记录登录失败次数失败", zap.Error(err), zap.Int64("user_id", user.Id))
	}
}

func (u *userInfoServiceImpl) Refresh(ctx context.Context, refreshToken string) (*myjwt.TokenPair, error) {
	claims, err := myjwt.ParseTyped(refreshToken, myjwt.TokenTypeRefresh)
	if err != nil {
		return nil, xerr.New(xerr.Unauthorized, "无效的刷新令牌")
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, xerr.New(xerr.Unauthorized, "无效的刷新令牌")
	}
	user, err := u.load(ctx, id)
	if err != nil {
		if xerr.CodeOf(err) == xerr.NotFound {
			return nil, xerr.New(xerr.Unauthorized, "无效的刷新令牌")
		}
		return nil, err
	}
	if !user.Active() {
		return nil, ErrAccountBlocked
	}
	pair, err := myjwt.GenerateTokenPair(user.Id, user.Username, user.Role)
	if err != nil {
		zlog.Error("签发令牌失败", zap.Error(err), zap.Int64("user_id", user.Id))
		return nil, xerr.ErrServerError
	}
	return pair, nil
}

func (u *userInfoServiceImpl) load(ctx context.Context, id int64) (*entity.UserInfo, error) {
	user, err := u.repo.GetUserInfoById(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.NotFoundf("用户不存在")
	}
	if err != nil {
		zlog.Error("查询用户失败", zap.Error(err), zap.Int64("user_id", id))
		return nil, xerr.ErrServerError
	}
	return user, nil
}

func (u *userInfoServiceImpl) Me(ctx context.Context, who caller.Caller) (*entity.UserInfo, error) {
	return u.load(ctx, who.UserID)
}

func (u *userInfoServiceImpl) UpdateMe(ctx context.Context, who caller.Caller, req request.UpdateMeRequest) (*entity.UserInfo, error) {
	return u.update(ctx, who.UserID, profileFields(req), who)
}

func (u *userInfoServiceImpl) update(ctx context.Context, id int64, fields map[string]interface{}, who caller.Caller) (*entity.UserInfo, error) {
	if _, err := u.load(ctx, id); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := u.repo.UpdateUserInfo(ctx, id, fields); err != nil {
			zlog.Error("更新用户失败", zap.Error(err), zap.Int64("user_id", id), zap.Int64("operator", who.UserID))
			return nil, xerr.ErrServerError
		}
	}
	return u.load(ctx, id)
}

func profileFields(req request.UpdateMeRequest) map[string]interface{} {
	fields := map[string]interface{}{}
	if req.FullName != nil {
		fields["full_name"] = *req.FullName
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}
	if req.AvatarUrl != nil {
		fields["avatar_url"] = *req.AvatarUrl
	}
	if req.Timezone != nil {
		fields["timezone"] = *req.Timezone
	}
	if req.Language != nil {
		fields["language"] = *req.Language
	}
	if req.Theme != nil {
		fields["theme"] = *req.Theme
	}
	return fields
}

func (u *userInfoServiceImpl) ChangePassword(ctx context.Context, who caller.Caller, req request.ChangePasswordRequest) error {
	user, err := u.load(ctx, who.UserID)
	if err != nil {
		return err
	}
	if !util.CheckPassword(user.Password, req.CurrentPassword) {
		return xerr.New(xerr.BadRequest, "当前密码错误")
	}
	if !util.StrongPassword(req.NewPassword) {
		return ErrWeakPassword
	}
	hashed, err := util.HashPassword(req.NewPassword)
	if err != nil {
		zlog.Error("密码加密失败", zap.Error(err))
		return xerr.ErrServerError
	}
	err = u.repo.UpdateUserInfo(ctx, user.Id, map[string]interface{}{
		"password":            hashed,
		"password_changed_at": u.now(),
	})
	if err != nil {
		zlog.Error("修改密码失败", zap.Error(err), zap.Int64("user_id", user.Id))
		return xerr.ErrServerError
	}
	return nil
}

func (u *userInfoServiceImpl) Stats(ctx context.Context, who caller.Caller) (*respond.UserStats, error) {
	stats := &respond.UserStats{}
	for _, collect := range u.collectors {
		if err := collect(ctx, who.UserID, stats); err != nil {
			zlog.Error("统计用户数据失败", zap.Error(err), zap.Int64("user_id", who.UserID))
			return nil, xerr.ErrServerError
		}
	}
	return stats, nil
}

func (u *userInfoServiceImpl) List(ctx context.Context, req request.ListUsersRequest, who caller.Caller) ([]entity.UserInfo, int64, error) {
	if !who.IsAdmin() {
		return nil, 0, xerr.ErrForbidden
	}
	users, total, err := u.repo.ListUserInfo(ctx, repository.UserFilter{
		Search:        strings.TrimSpace(req.Search),
		Status:        req.Status,
		Role:          req.Role,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
	}, req.Offset(), req.Limit())
	if err != nil {
		zlog.Error("查询用户列表失败", zap.Error(err), zap.Int64("operator", who.UserID))
		return nil, 0, xerr.ErrServerError
	}
	return users, total, nil
}

// Get 本人或管理员
func (u *userInfoServiceImpl) Get(ctx context.Context, id int64, who caller.Caller) (*entity.UserInfo, error) {
	if !who.CanModify(id) {
		return nil, xerr.ErrForbidden
	}
	return u.load(ctx, id)
}

func (u *userInfoServiceImpl) Update(ctx context.Context, id int64, req request.AdminUpdateUserRequest, who caller.Caller) (*entity.UserInfo, error) {
	if !who.CanModify(id) {
		return nil, xerr.ErrForbidden
	}
	fields := profileFields(req.UpdateMeRequest)
	var previous string
	if req.Role != nil || req.Status != nil || req.IsEmailVerified != nil {
		if !who.IsAdmin() {
			return nil, xerr.ErrForbidden
		}
		if req.Role != nil {
			current, err := u.load(ctx, id)
			if err != nil {
				return nil, err
			}
			previous = current.Role
			fields["role"] = *req.Role
		}
		if req.Status != nil {
			fields["status"] = *req.Status
		}
		if req.IsEmailVerified != nil {
			fields["is_email_verified"] = *req.IsEmailVerified
			if *req.IsEmailVerified {
				fields["email_verified_at"] = u.now()
			}
		}
	}
	user, err := u.update(ctx, id, fields, who)
	if err != nil {
		return nil, err
	}
	if req.Role != nil {
		// 角色未变也同步一次，补齐缺失的分配
		if err := u.syncRole(ctx, user.Id, user.Role, previous, who.UserID); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (u *userInfoServiceImpl) syncRole(ctx context.Context, userID int64, role, previous string, grantedBy int64) error {
	if u.roles == nil {
		return nil
	}
	if err := u.roles(ctx, userID, role, previous, grantedBy); err != nil {
		zlog.Error("同步用户角色失败", zap.Error(err), zap.Int64("user_id", userID), zap.String("role", role), zap.String("previous", previous))
		return xerr.ErrServerError
	}
	return nil
}

func (u *userInfoServiceImpl) PromoteSuperAdmin(ctx context.Context, username string) (*entity.UserInfo, error) {
	user, err := u.repo.GetUserInfoByUsername(ctx, username)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.NotFoundf("用户不存在")
	}
	if err != nil {
		zlog.Error("查询用户失败", zap.Error(err), zap.String("username", username))
		return nil, xerr.ErrServerError
	}
	previous := user.Role
	if previous != caller.RoleSuperAdmin {
		if err := u.repo.UpdateUserInfo(ctx, user.Id, map[string]interface{}{"role": caller.RoleSuperAdmin}); err != nil {
			zlog.Error("更新用户失败", zap.Error(err), zap.Int64("user_id", user.Id))
			return nil, xerr.ErrServerError
		}
		user.Role = caller.RoleSuperAdmin
	}
	if err := u.syncRole(ctx, user.Id, caller.RoleSuperAdmin, previous, 0); err != nil {
		return nil, err
	}
	zlog.Info("已设置超级管理员", zap.Int64("user_id", user.Id), zap.String("username", username))
	return user, nil
}

func (u *userInfoServiceImpl) SetStatus(ctx context.Context, id int64, status string, who caller.Caller) error {
	if !who.IsAdmin() {
		return xerr.ErrForbidden
	}
	_, err := u.update(ctx, id, map[string]interface{}{"status": status}, who)
	if err == nil {
		zlog.Info("修改用户状态", zap.Int64("user_id", id), zap.String("status", status), zap.Int64("operator", who.UserID))
	}
	return err
}

func (u *userInfoServiceImpl) Delete(ctx context.Context, id int64, who caller.Caller) error {
	if !who.IsAdmin() {
		return xerr.ErrForbidden
	}
	if who.UserID == id {
		return xerr.New(xerr.BadRequest, "不能删除自己")
	}
	err := u.repo.DeleteUserInfo(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return xerr.NotFoundf("用户不存在")
	}
	if err != nil {
		zlog.Error("删除用户失败", zap.Error(err), zap.Int64("user_id", id), zap.Int64("operator", who.UserID))
		return xerr.ErrServerError
	}
	return nil
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
