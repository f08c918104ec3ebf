package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"AgentPedia/internal/config"
	"AgentPedia/internal/modules/apikey/application/dto/request"
	"AgentPedia/internal/modules/apikey/application/dto/respond"
	"AgentPedia/internal/modules/apikey/domain/entity"
	"AgentPedia/internal/modules/apikey/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/util"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const keyPrefixLen = 8

var (
	ErrAPIKeyNotFound = xerr.NotFoundf("API密钥不存在或无权访问")
	ErrInvalidAPIKey  = xerr.New(xerr.Unauthorized, "无效的API密钥")
	ErrAPIKeyRevoked  = xerr.New(xerr.BadRequest, "已撤销的密钥无法激活")
)

// 拒绝原因
const (
	ReasonNotFound  = "API密钥不存在"
	ReasonInactive  = "API密钥未激活"
	ReasonExpired   = "API密钥已过期"
	ReasonPerMinute = "超过每分钟请求限制"
	ReasonPerHour   = "超过每小时请求限制"
	ReasonPerDay    = "超过每天请求限制"
)

type APIKeyService interface {
	Create(ctx context.Context, req request.CreateAPIKeyRequest, who caller.Caller) (*respond.APIKeyCreated, error)
	List(ctx context.Context, req request.ListAPIKeysRequest, who caller.Caller) ([]entity.APIKey, int64, error)
	Stats(ctx context.Context, who caller.Caller) (*respond.APIKeyStats, error)
	Get(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error)
	Update(ctx context.Context, id int64, req request.UpdateAPIKeyRequest, who caller.Caller) (*entity.APIKey, error)
	Activate(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error)
	Deactivate(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error)
	Revoke(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error)
	Delete(ctx context.Context, id int64, who caller.Caller) error
	// Extend 在原过期时间上累加，未设置过期时间时从当前时间起算
	Extend(ctx context.Context, id int64, days int, who caller.Caller) (*entity.APIKey, error)
	Usage(ctx context.Context, id int64, who caller.Caller) (*respond.APIKeyUsage, error)

	// Validate 明文校验，要求激活且未过期
	Validate(ctx context.Context, plaintext string) (*entity.APIKey, error)
	// CheckRateLimit 允许时同时占用一次配额
	CheckRateLimit(ctx context.Context, id int64) (*respond.RateLimitDecision, error)
	RecordUsage(ctx context.Context, id int64, ip string) error
	CountByUser(ctx context.Context, userID int64) (int64, error)
}

type apiKeyServiceImpl struct {
	repo    repository.APIKeyRepository
	limiter repository.RateLimiter
	now     func() time.Time
}

func NewAPIKeyService(repo repository.APIKeyRepository, limiter repository.RateLimiter) APIKeyService {
	return &apiKeyServiceImpl{
		repo:    repo,
		limiter: limiter,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func windowsOf(k *entity.APIKey) []repository.Window {
	return []repository.Window{
		{Name: "minute", Length: time.Minute, Limit: k.RateLimitPerMinute},
		{Name: "hour", Length: time.Hour, Limit: k.RateLimitPerHour},
		{Name: "day", Length: 24 * time.Hour, Limit: k.RateLimitPerDay},
	}
}

func checkLimits(minute, hour, day int) error {
	if hour < minute {
		return xerr.Paramf("每小时限制不能小于每分钟限制")
	}
	if day < hour {
		return xerr.Paramf("每天限制不能小于每小时限制")
	}
	return nil
}

func (s *apiKeyServiceImpl) Create(ctx context.Context, req request.CreateAPIKeyRequest, who caller.Caller) (*respond.APIKeyCreated, error) {
	max := config.GetConfig().SecurityConfig.MaxAPIKeys
	n, err := s.repo.CountNonRevoked(ctx, who.UserID)
	if err != nil {
		zlog.Error("统计 API 密钥失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, xerr.ErrServerError
	}
	if n >= int64(max) {
		return nil, xerr.Paramf("API密钥数量已达上限（%d个）", max)
	}

	minute, hour, day := intOr(req.RateLimitPerMinute, 60), intOr(req.RateLimitPerHour, 1000), intOr(req.RateLimitPerDay, 10000)
	if err := checkLimits(minute, hour, day); err != nil {
		return nil, err
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.now()) {
		return nil, xerr.Paramf("过期时间必须晚于当前时间")
	}
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{entity.ScopeRead}
	}

	plain := util.RandomURLToken(32)
	key := &entity.APIKey{
		UserId:             who.UserID,
		Name:               req.Name,
		Description:        req.Description,
		KeyHash:            util.SHA256Hex(plain),
		Prefix:             plain[:keyPrefixLen],
		Scopes:             scopes,
		Status:             entity.StatusActive,
		RateLimitPerMinute: minute,
		RateLimitPerHour:   hour,
		RateLimitPerDay:    day,
		ExpiresAt:          utcPtr(req.ExpiresAt),
	}
	if err := s.repo.CreateAPIKey(ctx, key); err != nil {
		zlog.Error("创建 API 密钥失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, xerr.ErrServerError
	}
	zlog.Info("创建 API 密钥", zap.Int64("key_id", key.Id), zap.Int64("user_id", who.UserID), zap.String("prefix", key.Prefix))
	return &respond.APIKeyCreated{APIKey: key, Key: plain}, nil
}

func (s *apiKeyServiceImpl) List(ctx context.Context, req request.ListAPIKeysRequest, who caller.Caller) ([]entity.APIKey, int64, error) {
	keys, total, err := s.repo.ListAPIKeys(ctx, who.UserID, req.Status, req.Offset(), req.Limit())
	if err != nil {
		zlog.Error("查询 API 密钥失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, 0, xerr.ErrServerError
	}
	return keys, total, nil
}

func (s *apiKeyServiceImpl) Stats(ctx context.Context, who caller.Caller) (*respond.APIKeyStats, error) {
	st, err := s.repo.Stats(ctx, who.UserID, s.now())
	if err != nil {
		zlog.Error("统计 API 密钥失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, xerr.ErrServerError
	}
	return &respond.APIKeyStats{
		TotalKeys:   st.TotalKeys,
		ActiveKeys:  st.ActiveKeys,
		ExpiredKeys: st.ExpiredKeys,
		RevokedKeys: st.RevokedKeys,
		TotalUsage:  st.TotalUsage,
	}, nil
}

// Get 只能访问本人的密钥
func (s *apiKeyServiceImpl) Get(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error) {
	key, err := s.repo.GetAPIKeyById(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		zlog.Error("查询 API 密钥失败", zap.Error(err), zap.Int64("key_id", id))
		return nil, xerr.ErrServerError
	}
	if key.UserId != who.UserID {
		return nil, ErrAPIKeyNotFound
	}
	return key, nil
}

func (s *apiKeyServiceImpl) update(ctx context.Context, key *entity.APIKey, fields map[string]interface{}) (*entity.APIKey, error) {
	if len(fields) > 0 {
		if err := s.repo.UpdateAPIKey(ctx, key.Id, fields); err != nil {
			zlog.Error("更新 API 密钥失败", zap.Error(err), zap.Int64("key_id", key.Id))
			return nil, xerr.ErrServerError
		}
	}
	updated, err := s.repo.GetAPIKeyById(ctx, key.Id)
	if err != nil {
		zlog.Error("查询 API 密钥失败", zap.Error(err), zap.Int64("key_id", key.Id))
		return nil, xerr.ErrServerError
	}
	return updated, nil
}

func (s *apiKeyServiceImpl) Update(ctx context.Context, id int64, req request.UpdateAPIKeyRequest, who caller.Caller) (*entity.APIKey, error) {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	minute := intOr(req.RateLimitPerMinute, key.RateLimitPerMinute)
	hour := intOr(req.RateLimitPerHour, key.RateLimitPerHour)
	day := intOr(req.RateLimitPerDay, key.RateLimitPerDay)
	if err := checkLimits(minute, hour, day); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Scopes != nil {
		if len(*req.Scopes) == 0 {
			return nil, xerr.Paramf("权限范围不能为空")
		}
		raw, err := encodeScopes(*req.Scopes)
		if err != nil {
			zlog.Error("编码权限范围失败", zap.Error(err), zap.Int64("key_id", key.Id))
			return nil, xerr.ErrServerError
		}
		fields["scopes"] = raw
	}
	if req.RateLimitPerMinute != nil {
		fields["rate_limit_per_minute"] = minute
	}
	if req.RateLimitPerHour != nil {
		fields["rate_limit_per_hour"] = hour
	}
	if req.RateLimitPerDay != nil {
		fields["rate_limit_per_day"] = day
	}
	if req.ExpiresAt != nil {
		fields["expires_at"] = req.ExpiresAt.UTC()
	}
	return s.update(ctx, key, fields)
}

func (s *apiKeyServiceImpl) Activate(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error) {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if key.Status == entity.StatusRevoked {
		return nil, ErrAPIKeyRevoked
	}
	return s.update(ctx, key, map[string]interface{}{"status": entity.StatusActive})
}

func (s *apiKeyServiceImpl) Deactivate(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error) {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	if key.Status == entity.StatusRevoked {
		return nil, xerr.Paramf("密钥已撤销")
	}
	return s.update(ctx, key, map[string]interface{}{"status": entity.StatusInactive})
}

func (s *apiKeyServiceImpl) Revoke(ctx context.Context, id int64, who caller.Caller) (*entity.APIKey, error) {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	updated, err := s.update(ctx, key, map[string]interface{}{"status": entity.StatusRevoked})
	if err != nil {
		return nil, err
	}
	s.resetWindows(ctx, key)
	zlog.Info("撤销 API 密钥", zap.Int64("key_id", id), zap.Int64("user_id", who.UserID))
	return updated, nil
}

func (s *apiKeyServiceImpl) Delete(ctx context.Context, id int64, who caller.Caller) error {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAPIKey(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAPIKeyNotFound
		}
		zlog.Error("删除 API 密钥失败", zap.Error(err), zap.Int64("key_id", id))
		return xerr.ErrServerError
	}
	s.resetWindows(ctx, key)
	return nil
}

func (s *apiKeyServiceImpl) resetWindows(ctx context.Context, key *entity.APIKey) {
	if err := s.limiter.Reset(ctx, key.Id, windowsOf(key), s.now()); err != nil {
		zlog.Warn("重置限流计数失败", zap.Error(err), zap.Int64("key_id", key.Id))
	}
}

func (s *apiKeyServiceImpl) Extend(ctx context.Context, id int64, days int, who caller.Caller) (*entity.APIKey, error) {
	if days <= 0 {
		return nil, xerr.Paramf("延长天数必须大于 0")
	}
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	base := s.now()
	if key.ExpiresAt != nil {
		base = *key.ExpiresAt
	}
	return s.update(ctx, key, map[string]interface{}{"expires_at": base.Add(time.Duration(days) * 24 * time.Hour).UTC()})
}

func (s *apiKeyServiceImpl) Usage(ctx context.Context, id int64, who caller.Caller) (*respond.APIKeyUsage, error) {
	key, err := s.Get(ctx, id, who)
	if err != nil {
		return nil, err
	}
	states, err := s.limiter.Peek(ctx, key.Id, windowsOf(key), s.now())
	if err != nil {
		zlog.Error("读取限流计数失败", zap.Error(err), zap.Int64("key_id", id))
		return nil, xerr.ErrServerError
	}
	return &respond.APIKeyUsage{
		KeyId:              key.Id,
		KeyName:            key.Name,
		UsageCount:         key.UsageCount,
		LastUsedAt:         key.LastUsedAt,
		RateLimitRemaining: rateInfo(states),
	}, nil
}

func (s *apiKeyServiceImpl) Validate(ctx context.Context, plaintext string) (*entity.APIKey, error) {
	plaintext = strings.TrimSpace(plaintext)
	if len(plaintext) < keyPrefixLen {
		return nil, ErrInvalidAPIKey
	}
	key, err := s.repo.GetAPIKeyByHash(ctx, util.SHA256Hex(plaintext))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		zlog.Error("校验 API 密钥失败", zap.Error(err))
		return nil, xerr.ErrServerError
	}
	if !key.Usable(s.now()) {
		return nil, ErrInvalidAPIKey
	}
	return key, nil
}

func (s *apiKeyServiceImpl) CheckRateLimit(ctx context.Context, id int64) (*respond.RateLimitDecision, error) {
	key, err := s.repo.GetAPIKeyById(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &respond.RateLimitDecision{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		zlog.Error("查询 API 密钥失败", zap.Error(err), zap.Int64("key_id", id))
		return nil, xerr.ErrServerError
	}
	now := s.now()
	if key.Status != entity.StatusActive {
		return &respond.RateLimitDecision{Reason: ReasonInactive}, nil
	}
	if key.Expired(now) {
		return &respond.RateLimitDecision{Reason: ReasonExpired}, nil
	}

	ok, states, err := s.limiter.Take(ctx, key.Id, windowsOf(key), now)
	if err != nil {
		zlog.Error("限流计数失败", zap.Error(err), zap.Int64("key_id", id))
		return nil, xerr.ErrServerError
	}
	d := &respond.RateLimitDecision{Allowed: ok, RateLimitInfo: rateInfo(states)}
	if !ok {
		d.Reason = exhaustedReason(states)
	}
	return d, nil
}

func (s *apiKeyServiceImpl) RecordUsage(ctx context.Context, id int64, ip string) error {
	if err := s.repo.RecordUsage(ctx, id, ip, s.now()); err != nil {
		zlog.Error("记录 API 密钥使用失败", zap.Error(err), zap.Int64("key_id", id))
		return xerr.ErrServerError
	}
	return nil
}

func (s *apiKeyServiceImpl) CountByUser(ctx context.Context, userID int64) (int64, error) {
	return s.repo.CountNonRevoked(ctx, userID)
}

func rateInfo(states []repository.WindowState) respond.RateLimitInfo {
	var info respond.RateLimitInfo
	for _, st := range states {
		switch st.Name {
		case "minute":
			info.LimitPerMinute, info.RemainingPerMinute, info.ResetTimeMinute = st.Limit, st.Remaining(), st.ResetAt
		case "hour":
			info.LimitPerHour, info.RemainingPerHour, info.ResetTimeHour = st.Limit, st.Remaining(), st.ResetAt
		case "day":
			info.LimitPerDay, info.RemainingPerDay, info.ResetTimeDay = st.Limit, st.Remaining(), st.ResetAt
		}
	}
	return info
}

func exhaustedReason(states []repository.WindowState) string {
	for _, st := range states {
		if st.Remaining() > 0 {
			continue
		}
		switch st.Name {
		case "minute":
			return ReasonPerMinute
		case "hour":
			return ReasonPerHour
		case "day":
			return ReasonPerDay
		}
	}
	return "超过请求限制"
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// encodeScopes map 更新不走 serializer，去重后手动编码
func encodeScopes(scopes []string) (string, error) {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, sc := range scopes {
		if _, ok := seen[sc]; ok {
			continue
		}
		seen[sc] = struct{}{}
		out = append(out, sc)
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
