package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"AgentPedia/internal/config"
	"AgentPedia/internal/modules/user/application/dto/request"
	"AgentPedia/internal/modules/user/application/dto/respond"
	"AgentPedia/internal/modules/user/domain/entity"
	"AgentPedia/internal/modules/user/infrastructure/persistence"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/dbtest"
	"AgentPedia/pkg/util/myjwt"
	"AgentPedia/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setup(t *testing.T, opts ...func(*userInfoServiceImpl)) (*userInfoServiceImpl, *gorm.DB) {
	t.Helper()
	c := config.Default()
	c.JwtConfig.Key = "user-service-test"
	config.SetConfig(c)

	db := dbtest.Open(t, &entity.UserInfo{})
	svc := NewUserInfoService(persistence.NewUserInfoRepository(db), nil).(*userInfoServiceImpl)
	for _, o := range opts {
		o(svc)
	}
	return svc, db
}

func register(t *testing.T, svc UserInfoService, username string) *entity.UserInfo {
	t.Helper()
	u, err := svc.Register(context.Background(), request.RegisterRequest{
		Username: username, Email: username + "@example.com",
		Password: "passw0rd!", ConfirmPassword: "passw0rd!",
	})
	require.NoError(t, err)
	return u
}

func TestRegisterAssignsDefaults(t *testing.T) {
	var assigned []int64
	svc, _ := setup(t, func(s *userInfoServiceImpl) {
		s.roles = func(ctx context.Context, userID int64, role, previous string, grantedBy int64) error {
			assert.Equal(t, caller.RoleUser, role)
			assert.Empty(t, previous)
			assigned = append(assigned, userID)
			return nil
		}
	})
	u := register(t, svc, "alice")
	assert.Equal(t, caller.RoleUser, u.Role)
	assert.Equal(t, entity.StatusActive, u.Status)
	assert.NotEqual(t, "passw0rd!", u.Password)
	assert.Equal(t, []int64{u.Id}, assigned)
}

func TestRegisterConflicts(t *testing.T) {
	svc, _ := setup(t)
	register(t, svc, "alice")

	_, err := svc.Register(context.Background(), request.RegisterRequest{
		Username: "alice", Email: "other@example.com", Password: "passw0rd!", ConfirmPassword: "passw0rd!",
	})
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))

	_, err = svc.Register(context.Background(), request.RegisterRequest{
		Username: "bob", Email: "alice@example.com", Password: "passw0rd!", ConfirmPassword: "passw0rd!",
	})
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))

	_, err = svc.Register(context.Background(), request.RegisterRequest{
		Username: "carol", Email: "carol@example.com", Password: "password", ConfirmPassword: "password",
	})
	assert.Equal(t, ErrWeakPassword, err)
}

func TestLoginIssuesTokens(t *testing.T) {
	svc, _ := setup(t)
	u := register(t, svc, "alice")

	res, err := svc.Login(context.Background(), request.LoginRequest{Username: "alice@example.com", Password: "passw0rd!"}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", res.TokenType)
	assert.Equal(t, int64(1), res.User.LoginCount)

	claims, err := myjwt.ParseTyped(res.AccessToken, myjwt.TokenTypeAccess)
	require.NoError(t, err)
	id, _ := claims.UserID()
	assert.Equal(t, u.Id, id)

	pair, err := svc.Refresh(context.Background(), res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = svc.Refresh(context.Background(), res.AccessToken)
	assert.Equal(t, xerr.Unauthorized, xerr.CodeOf(err))

	me, err := svc.Me(context.Background(), caller.Caller{UserID: u.Id})
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", me.LastLoginIp)
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	svc, _ := setup(t)
	register(t, svc, "alice")
	ctx := context.Background()

	for i := 0; i < config.GetConfig().SecurityConfig.MaxLoginAttempts; i++ {
		_, err := svc.Login(ctx, request.LoginRequest{Username: "alice", Password: "nope"}, "")
		assert.Equal(t, ErrBadCredentials, err)
	}
	_, err := svc.Login(ctx, request.LoginRequest{Username: "alice", Password: "passw0rd!"}, "")
	assert.Equal(t, ErrAccountLocked, err)

	// 锁定到期后恢复
	svc.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }
	_, err = svc.Login(ctx, request.LoginRequest{Username: "alice", Password: "passw0rd!"}, "")
	assert.NoError(t, err)
}

func TestLoginRejectsInactive(t *testing.T) {
	svc, _ := setup(t)
	u := register(t, svc, "alice")
	admin := caller.Caller{UserID: 99, Role: caller.RoleAdmin}
	require.NoError(t, svc.SetStatus(context.Background(), u.Id, entity.StatusSuspended, admin))

	_, err := svc.Login(context.Background(), request.LoginRequest{Username: "alice", Password: "passw0rd!"}, "")
	assert.Equal(t, ErrAccountBlocked, err)
}

func TestChangePassword(t *testing.T) {
	svc, _ := setup(t)
	u := register(t, svc, "alice")
	who := caller.Caller{UserID: u.Id}
	ctx := context.Background()

	err := svc.ChangePassword(ctx, who, request.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "n3wpassword", ConfirmPassword: "n3wpassword"})
	assert.Equal(t, xerr.BadRequest, xerr.CodeOf(err))

	require.NoError(t, svc.ChangePassword(ctx, who, request.ChangePasswordRequest{CurrentPassword: "passw0rd!", NewPassword: "n3wpassword", ConfirmPassword: "n3wpassword"}))
	_, err = svc.Login(ctx, request.LoginRequest{Username: "alice", Password: "n3wpassword"}, "")
	assert.NoError(t, err)
}

func TestAdminOperations(t *testing.T) {
	svc, db := setup(t)
	alice := register(t, svc, "alice")
	register(t, svc, "bob")
	admin := caller.Caller{UserID: 100, Role: caller.RoleAdmin}
	ctx := context.Background()

	_, _, err := svc.List(ctx, request.ListUsersRequest{}, caller.Caller{UserID: alice.Id, Role: caller.RoleUser})
	assert.Equal(t, xerr.ErrForbidden, err)

	users, total, err := svc.List(ctx, request.ListUsersRequest{Search: "ali"}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "alice", users[0].Username)

	role := caller.RoleDeveloper
	_, err = svc.Update(ctx, alice.Id, request.AdminUpdateUserRequest{Role: &role}, caller.Caller{UserID: alice.Id})
	assert.Equal(t, xerr.ErrForbidden, err)
	updated, err := svc.Update(ctx, alice.Id, request.AdminUpdateUserRequest{Role: &role}, admin)
	require.NoError(t, err)
	assert.Equal(t, caller.RoleDeveloper, updated.Role)

	require.NoError(t, svc.Delete(ctx, alice.Id, admin))
	_, err = svc.Get(ctx, alice.Id, admin)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))

	// 软删除保留行
	var n int64
	require.NoError(t, db.Unscoped().Model(&entity.UserInfo{}).Where("id = ?", alice.Id).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestStatsCollectors(t *testing.T) {
	svc, _ := setup(t, func(s *userInfoServiceImpl) {
		s.collectors = []StatsCollector{
			func(ctx context.Context, userID int64, st *respond.UserStats) error {
				st.TotalAgents, st.ActiveAgents = 3, 2
				return nil
			},
			func(ctx context.Context, userID int64, st *respond.UserStats) error {
				st.APIKeysCount = 1
				return nil
			},
		}
	})
	st, err := svc.Stats(context.Background(), caller.Caller{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.TotalAgents)
	assert.Equal(t, int64(1), st.APIKeysCount)
}

type roleChange struct {
	userID         int64
	role, previous string
	grantedBy      int64
}

func recordRoles(changes *[]roleChange, fail *bool) func(*userInfoServiceImpl) {
	return func(s *userInfoServiceImpl) {
		s.roles = func(ctx context.Context, userID int64, role, previous string, grantedBy int64) error {
			if *fail {
				return errors.New("rbac down")
			}
			*changes = append(*changes, roleChange{userID, role, previous, grantedBy})
			return nil
		}
	}
}

func TestAdminRoleChangeSyncsAssignment(t *testing.T) {
	var changes []roleChange
	fail := false
	svc, _ := setup(t, recordRoles(&changes, &fail))
	alice := register(t, svc, "alice")
	admin := caller.Caller{UserID: 100, Role: caller.RoleAdmin}
	ctx := context.Background()

	role := caller.RoleModerator
	_, err := svc.Update(ctx, alice.Id, request.AdminUpdateUserRequest{Role: &role}, admin)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, roleChange{alice.Id, caller.RoleModerator, caller.RoleUser, 100}, changes[1])

	// 只改资料不触发同步
	name := "Alice"
	_, err = svc.Update(ctx, alice.Id, request.AdminUpdateUserRequest{UpdateMeRequest: request.UpdateMeRequest{FullName: &name}}, admin)
	require.NoError(t, err)
	assert.Len(t, changes, 2)

	fail = true
	role = caller.RoleDeveloper
	_, err = svc.Update(ctx, alice.Id, request.AdminUpdateUserRequest{Role: &role}, admin)
	assert.Equal(t, xerr.ErrServerError, err)
}

func TestPromoteSuperAdmin(t *testing.T) {
	var changes []roleChange
	fail := false
	svc, _ := setup(t, recordRoles(&changes, &fail))
	bob := register(t, svc, "bob")
	ctx := context.Background()

	u, err := svc.PromoteSuperAdmin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, caller.RoleSuperAdmin, u.Role)
	assert.Equal(t, roleChange{bob.Id, caller.RoleSuperAdmin, caller.RoleUser, 0}, changes[len(changes)-1])

	stored, err := svc.load(ctx, bob.Id)
	require.NoError(t, err)
	assert.Equal(t, caller.RoleSuperAdmin, stored.Role)

	// 重复执行幂等，previous 与新角色一致
	_, err = svc.PromoteSuperAdmin(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, roleChange{bob.Id, caller.RoleSuperAdmin, caller.RoleSuperAdmin, 0}, changes[len(changes)-1])

	_, err = svc.PromoteSuperAdmin(ctx, "nobody")
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))
}
