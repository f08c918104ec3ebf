package service

import (
	"context"
	"testing"
	"time"

	"AgentPedia/internal/modules/rbac/domain/entity"
	"AgentPedia/internal/modules/rbac/infrastructure/persistence"
	"AgentPedia/pkg/dbtest"
	"AgentPedia/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *rbacServiceImpl {
	t.Helper()
	db := dbtest.Open(t, &entity.Permission{}, &entity.Role{}, &entity.UserRoleAssignment{})
	svc := NewRBACService(persistence.NewRBACRepository(db)).(*rbacServiceImpl)
	require.NoError(t, svc.InitializeDefaults(context.Background()))
	return svc
}

func TestInitializeDefaultsIsIdempotent(t *testing.T) {
	svc := newService(t)
	require.NoError(t, svc.InitializeDefaults(context.Background()))

	roles, err := svc.ListRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, roles, len(entity.DefaultRoles))
	assert.Equal(t, "super_admin", roles[0].Code)
	assert.Equal(t, "*", roles[0].Permissions[0].Code)
}

func TestPermissionsAreUnionOfRoles(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, 7, "viewer", 1, nil, "")
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, 7, "moderator", 1, nil, "")
	require.NoError(t, err)

	perms, err := svc.GetUserPermissions(ctx, 7)
	require.NoError(t, err)
	assert.Contains(t, perms, "agent.read")
	assert.Contains(t, perms, "conversation.manage")
	// 去重
	count := 0
	for _, p := range perms {
		if p == "agent.read" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	ok, err := svc.CheckPermission(ctx, 7, "system.manage")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWildcardAllowsEverything(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.AssignRole(ctx, 1, "super_admin", 0, nil, "bootstrap")
	require.NoError(t, err)

	ok, err := svc.CheckPermission(ctx, 1, "system.manage")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssignIsIdempotentAndRevokable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a1, err := svc.AssignRole(ctx, 5, "user", 1, nil, "")
	require.NoError(t, err)
	a2, err := svc.AssignRole(ctx, 5, "user", 1, nil, "")
	require.NoError(t, err)
	assert.Equal(t, a1.Id, a2.Id)

	revoked, err := svc.RevokeRole(ctx, 5, "user")
	require.NoError(t, err)
	assert.True(t, revoked)
	revoked, err = svc.RevokeRole(ctx, 5, "user")
	require.NoError(t, err)
	assert.False(t, revoked)

	perms, err := svc.GetUserPermissions(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestUnknownRole(t *testing.T) {
	svc := newService(t)
	_, err := svc.AssignRole(context.Background(), 5, "wizard", 1, nil, "")
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))
}

func TestExpiredAssignmentsAreIgnoredAndCleaned(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Hour)
	_, err := svc.AssignRole(ctx, 9, "admin", 1, &past, "temporary")
	require.NoError(t, err)

	ok, err := svc.CheckPermission(ctx, 9, "system.manage")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := svc.CleanupExpiredAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
