package service

import (
	"context"
	"testing"

	"AgentPedia/internal/modules/agent/application/dto/request"
	"AgentPedia/internal/modules/agent/domain/entity"
	"AgentPedia/internal/modules/agent/domain/repository"
	"AgentPedia/internal/modules/agent/infrastructure/persistence"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/dbtest"
	"AgentPedia/pkg/pagination"
	"AgentPedia/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	alice = caller.Caller{UserID: 1, Username: "alice", Role: caller.RoleUser}
	bob   = caller.Caller{UserID: 2, Username: "bob", Role: caller.RoleUser}
	admin = caller.Caller{UserID: 9, Username: "root", Role: caller.RoleAdmin}
)

func newService(t *testing.T) (AgentService, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &entity.Agent{}, &entity.AgentTool{})
	return NewAgentService(persistence.NewAgentRepository(db)), db
}

func createReq(name, visibility string, tools ...string) request.CreateAgentRequest {
	return request.CreateAgentRequest{
		Name:          name,
		Visibility:    visibility,
		ModelProvider: entity.ProviderOpenAI,
		ModelName:     "gpt-4o-mini",
		SystemPrompt:  "you are helpful",
		Tools:         tools,
	}
}

func page() pagination.Query { return pagination.Query{Page: 1, Size: 20} }

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _ := newService(t)
	a, err := svc.Create(context.Background(), createReq("helper", "", "search", "search", "calc"), alice)
	require.NoError(t, err)

	assert.Equal(t, entity.TypeChatbot, a.Type)
	assert.Equal(t, entity.VisibilityPrivate, a.Visibility)
	assert.Equal(t, entity.StatusActive, a.Status)
	assert.Equal(t, 0.7, a.Temperature)
	assert.Equal(t, 2048, a.MaxTokens)
	assert.Equal(t, 1.0, a.TopP)
	assert.Equal(t, 10, a.MemoryWindow)
	assert.Equal(t, 50, a.MaxConversationLength)
	assert.Equal(t, 60, a.RateLimitPerMinute)
	assert.Equal(t, 1000, a.RateLimitPerHour)
	assert.Equal(t, 10000, a.RateLimitPerDay)
	assert.True(t, a.EnableMemory)
	assert.Equal(t, 100.0, a.SuccessRate)
	assert.Nil(t, a.PublishedAt)
	require.Len(t, a.Tools, 2)
	assert.Equal(t, "search", a.Tools[0].ToolName)
}

func TestCreateNameUniquePerOwner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createReq("dup", ""), alice)
	require.NoError(t, err)

	_, err = svc.Create(ctx, createReq("dup", ""), alice)
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))

	_, err = svc.Create(ctx, createReq("dup", ""), bob)
	assert.NoError(t, err)
}

func TestGetPrivateVisibility(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("secret", entity.VisibilityPrivate), alice)
	require.NoError(t, err)

	_, err = svc.Get(ctx, a.Id, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))
	_, err = svc.Get(ctx, a.Id, caller.Anonymous())
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))
	_, err = svc.Get(ctx, a.Id, alice)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, a.Id, admin)
	assert.NoError(t, err)

	_, err = svc.Get(ctx, 999, alice)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))
}

func TestListVisibility(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createReq("A1", entity.VisibilityPublic), alice)
	require.NoError(t, err)
	_, err = svc.Create(ctx, createReq("A2", entity.VisibilityPrivate), bob)
	require.NoError(t, err)
	_, err = svc.Create(ctx, createReq("A3", entity.VisibilityUnlisted), bob)
	require.NoError(t, err)

	names := func(who caller.Caller) []string {
		items, total, err := svc.List(ctx, request.ListAgentsRequest{Query: page()}, who)
		require.NoError(t, err)
		require.Equal(t, int64(len(items)), total)
		out := make([]string, 0, len(items))
		for _, a := range items {
			out = append(out, a.Name)
		}
		return out
	}
	assert.Equal(t, []string{"A1"}, names(caller.Anonymous()))
	assert.Equal(t, []string{"A1"}, names(alice))
	assert.ElementsMatch(t, []string{"A1", "A2", "A3"}, names(bob))

	mine, total, err := svc.ListMine(ctx, request.ListAgentsRequest{Query: page()}, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, mine, 2)
}

func TestListFilters(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	req := createReq("code writer", entity.VisibilityPublic)
	req.Type = entity.TypeGenerator
	_, err := svc.Create(ctx, req, alice)
	require.NoError(t, err)
	_, err = svc.Create(ctx, createReq("chat pal", entity.VisibilityPublic), bob)
	require.NoError(t, err)

	items, _, err := svc.List(ctx, request.ListAgentsRequest{Query: page(), Search: "code"}, caller.Anonymous())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "code writer", items[0].Name)

	items, _, err = svc.List(ctx, request.ListAgentsRequest{Query: page(), Type: entity.TypeChatbot}, caller.Anonymous())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "chat pal", items[0].Name)

	items, _, err = svc.List(ctx, request.ListAgentsRequest{Query: page(), OwnerID: alice.UserID}, caller.Anonymous())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, alice.UserID, items[0].OwnerId)
}

func TestListSearchTreatsWildcardsLiterally(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, name := range []string{"100% coder", "1000 coder", "sql_bot", "sqlxbot"} {
		_, err := svc.Create(ctx, createReq(name, entity.VisibilityPublic), alice)
		require.NoError(t, err)
	}

	search := func(term string) []string {
		items, _, err := svc.List(ctx, request.ListAgentsRequest{Query: page(), Search: term}, caller.Anonymous())
		require.NoError(t, err)
		out := make([]string, 0, len(items))
		for _, a := range items {
			out = append(out, a.Name)
		}
		return out
	}
	assert.Equal(t, []string{"100% coder"}, search("100%"))
	assert.Equal(t, []string{"sql_bot"}, search("l_b"))
	assert.Empty(t, search(`sql\bot`))
}

func TestUpdatePartialAndReplaceTools(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("editable", "", "search"), alice)
	require.NoError(t, err)

	temp := 1.2
	tools := []string{"calc", "web"}
	updated, err := svc.Update(ctx, a.Id, request.UpdateAgentRequest{Temperature: &temp, Tools: &tools}, alice)
	require.NoError(t, err)
	assert.Equal(t, 1.2, updated.Temperature)
	assert.Equal(t, "editable", updated.Name)
	assert.Equal(t, 2048, updated.MaxTokens)
	require.Len(t, updated.Tools, 2)
	assert.Equal(t, "calc", updated.Tools[0].ToolName)

	_, err = svc.Update(ctx, a.Id, request.UpdateAgentRequest{Temperature: &temp}, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))

	// 未传 tools 时保持原样
	desc := "new"
	updated, err = svc.Update(ctx, a.Id, request.UpdateAgentRequest{Description: &desc}, admin)
	require.NoError(t, err)
	assert.Len(t, updated.Tools, 2)
}

func TestUpdateRenameConflict(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createReq("one", ""), alice)
	require.NoError(t, err)
	two, err := svc.Create(ctx, createReq("two", ""), alice)
	require.NoError(t, err)

	name := "one"
	_, err = svc.Update(ctx, two.Id, request.UpdateAgentRequest{Name: &name}, alice)
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))
}

func TestDeleteIsSoft(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("gone", entity.VisibilityPublic), alice)
	require.NoError(t, err)

	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(svc.Delete(ctx, a.Id, bob)))
	require.NoError(t, svc.Delete(ctx, a.Id, alice))

	_, err = svc.Get(ctx, a.Id, alice)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))
	items, _, err := svc.List(ctx, request.ListAgentsRequest{Query: page()}, alice)
	require.NoError(t, err)
	assert.Empty(t, items)

	var row entity.Agent
	require.NoError(t, db.Unscoped().First(&row, a.Id).Error)
	assert.True(t, row.DeletedAt.Valid)

	// 删除后可以复用名称
	_, err = svc.Create(ctx, createReq("gone", ""), alice)
	assert.NoError(t, err)
}

func TestCloneCopiesConfig(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	src, err := svc.Create(ctx, createReq("origin", entity.VisibilityPublic, "search"), alice)
	require.NoError(t, err)
	require.NoError(t, svc.RecordUsage(ctx, src.Id, repository.Usage{Tokens: 10, Success: true}))

	clone, err := svc.Clone(ctx, src.Id, request.CloneAgentRequest{Name: "copy"}, bob)
	require.NoError(t, err)
	assert.NotEqual(t, src.Id, clone.Id)
	assert.Equal(t, bob.UserID, clone.OwnerId)
	assert.Equal(t, entity.VisibilityPrivate, clone.Visibility)
	assert.Equal(t, "克隆自 origin", clone.Description)
	assert.Equal(t, src.SystemPrompt, clone.SystemPrompt)
	assert.Zero(t, clone.UsageCount)
	assert.Nil(t, clone.PublishedAt)
	require.Len(t, clone.Tools, 1)
	assert.Equal(t, "search", clone.Tools[0].ToolName)

	_, err = svc.Clone(ctx, src.Id, request.CloneAgentRequest{Name: "copy"}, bob)
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))

	private, err := svc.Create(ctx, createReq("mine", ""), alice)
	require.NoError(t, err)
	_, err = svc.Clone(ctx, private.Id, request.CloneAgentRequest{Name: "stolen"}, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))
}

func TestPublishUnpublish(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("pub", ""), alice)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, a.Id, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))

	pub, err := svc.Publish(ctx, a.Id, alice)
	require.NoError(t, err)
	assert.Equal(t, entity.VisibilityPublic, pub.Visibility)
	assert.NotNil(t, pub.PublishedAt)
	_, err = svc.Get(ctx, a.Id, bob)
	assert.NoError(t, err)

	un, err := svc.Unpublish(ctx, a.Id, alice)
	require.NoError(t, err)
	assert.Equal(t, entity.VisibilityPrivate, un.Visibility)
	assert.Nil(t, un.PublishedAt)
}

func TestRecordUsageAndStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("busy", entity.VisibilityPublic), alice)
	require.NoError(t, err)

	require.NoError(t, svc.RecordUsage(ctx, a.Id, repository.Usage{Tokens: 100, Cost: 0.5, ResponseTimeMs: 200, Success: true, NewMessages: 2, NewConversation: true}))
	require.NoError(t, svc.RecordUsage(ctx, a.Id, repository.Usage{Tokens: 50, Cost: 0.25, ResponseTimeMs: 400, NewMessages: 2}))

	st, err := svc.Stats(ctx, a.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.UsageCount)
	assert.Equal(t, int64(150), st.TotalTokensUsed)
	assert.InDelta(t, 0.75, st.TotalCost, 1e-9)
	assert.InDelta(t, 300, st.AverageResponseTime, 1e-9)
	assert.InDelta(t, 50, st.SuccessRate, 1e-9)
	assert.Equal(t, int64(1), st.TotalConversations)
	assert.Equal(t, int64(4), st.TotalMessages)
	assert.NotNil(t, st.LastUsedAt)
}

func TestExportImportRoundTrip(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("portable", entity.VisibilityPublic, "search", "calc"), alice)
	require.NoError(t, err)
	require.NoError(t, svc.ToggleTool(ctx, a.Id, "calc", false, alice))

	_, err = svc.Export(ctx, a.Id, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))

	exp, err := svc.Export(ctx, a.Id, alice)
	require.NoError(t, err)
	assert.Equal(t, "1.0", exp.Version)
	assert.Equal(t, []string{"search"}, exp.Tools)
	assert.Equal(t, 60, exp.RateLimits.PerMinute)

	imported, err := svc.Import(ctx, request.ImportAgentRequest{Data: *exp}, bob)
	require.NoError(t, err)
	assert.Equal(t, bob.UserID, imported.OwnerId)
	assert.Equal(t, entity.VisibilityPrivate, imported.Visibility)
	assert.Equal(t, a.SystemPrompt, imported.SystemPrompt)
	require.Len(t, imported.Tools, 1)

	_, err = svc.Import(ctx, request.ImportAgentRequest{Data: *exp}, bob)
	assert.Equal(t, xerr.Conflict, xerr.CodeOf(err))

	exp.SystemPrompt = "rewritten"
	exp.Tools = nil
	over, err := svc.Import(ctx, request.ImportAgentRequest{Data: *exp, Overwrite: true}, bob)
	require.NoError(t, err)
	assert.Equal(t, imported.Id, over.Id)
	assert.Equal(t, "rewritten", over.SystemPrompt)
	assert.Empty(t, over.Tools)
}

func TestToggleTool(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, createReq("tooled", "", "search"), alice)
	require.NoError(t, err)

	require.NoError(t, svc.ToggleTool(ctx, a.Id, "search", false, alice))
	got, err := svc.Get(ctx, a.Id, alice)
	require.NoError(t, err)
	assert.False(t, got.Tools[0].IsEnabled)

	assert.Equal(t, xerr.NotFound, xerr.CodeOf(svc.ToggleTool(ctx, a.Id, "missing", true, alice)))
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(svc.ToggleTool(ctx, a.Id, "search", true, bob)))
}

func TestCountByOwner(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, createReq("x", ""), alice)
	require.NoError(t, err)
	y, err := svc.Create(ctx, createReq("y", ""), alice)
	require.NoError(t, err)
	status := entity.StatusDraft
	_, err = svc.Update(ctx, y.Id, request.UpdateAgentRequest{Status: &status}, alice)
	require.NoError(t, err)

	total, active, err := svc.CountByOwner(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, int64(1), active)
}
