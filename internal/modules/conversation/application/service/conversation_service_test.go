package service

import (
	"context"
	"errors"
	"testing"

	"AgentPedia/internal/config"
	agentRequest "AgentPedia/internal/modules/agent/application/dto/request"
	agentService "AgentPedia/internal/modules/agent/application/service"
	agentEntity "AgentPedia/internal/modules/agent/domain/entity"
	agentPersistence "AgentPedia/internal/modules/agent/infrastructure/persistence"
	"AgentPedia/internal/modules/conversation/application/dto/request"
	"AgentPedia/internal/modules/conversation/domain/entity"
	"AgentPedia/internal/modules/conversation/infrastructure/persistence"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/dbtest"
	"AgentPedia/pkg/pagination"
	"AgentPedia/pkg/xerr"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = caller.Caller{UserID: 1, Username: "alice", Role: caller.RoleUser}
	bob   = caller.Caller{UserID: 2, Username: "bob", Role: caller.RoleUser}
)

type fakeChatModel struct {
	reply    string
	err      error
	tokens   int
	lastIn   []*schema.Message
	lastOpts *model.Options
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.lastIn = input
	f.lastOpts = model.GetCommonOptions(&model.Options{}, opts...)
	if f.err != nil {
		return nil, f.err
	}
	msg := schema.AssistantMessage(f.reply, nil)
	if f.tokens > 0 {
		msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{TotalTokens: f.tokens}}
	}
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

type fixture struct {
	svc    ConversationService
	agents agentService.AgentService
	chat   *fakeChatModel
	agent  *agentEntity.Agent
	tokens tokenCounter
}

type tokenCounter map[string]int

func (c tokenCounter) ObserveChatTokens(provider string, tokens int) { c[provider] += tokens }

func setup(t *testing.T, withModel bool) *fixture {
	t.Helper()
	c := config.Default()
	c.AIConfig.ChatModel.CostPer1KTokens = 0.002
	config.SetConfig(c)

	db := dbtest.Open(t, &agentEntity.Agent{}, &agentEntity.AgentTool{}, &entity.Conversation{}, &entity.Message{})
	agents := agentService.NewAgentService(agentPersistence.NewAgentRepository(db))
	window := 3
	agent, err := agents.Create(context.Background(), agentRequest.CreateAgentRequest{
		Name:          "helper",
		Visibility:    agentEntity.VisibilityPublic,
		ModelProvider: agentEntity.ProviderOpenAI,
		ModelName:     "gpt-4o-mini",
		SystemPrompt:  "be brief",
		MemoryWindow:  &window,
	}, alice)
	require.NoError(t, err)

	f := &fixture{agents: agents, agent: agent, chat: &fakeChatModel{reply: "hi there", tokens: 30}, tokens: tokenCounter{}}
	var cm model.BaseChatModel
	if withModel {
		cm = f.chat
	}
	f.svc = NewConversationService(persistence.NewConversationRepository(db), agents, cm, WithTokenObserver(f.tokens))
	return f
}

func TestCreateDefaultTitle(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)
	assert.Equal(t, "与 helper 的对话", conv.Title)
	assert.Equal(t, entity.StatusActive, conv.Status)

	_, err = f.svc.Create(ctx, request.CreateConversationRequest{AgentId: 404}, bob)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))
}

func TestCreateRequiresVisibleAgent(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	private, err := f.agents.Create(ctx, agentRequest.CreateAgentRequest{
		Name: "hidden", ModelProvider: agentEntity.ProviderOpenAI, ModelName: "m",
	}, alice)
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, request.CreateConversationRequest{AgentId: private.Id}, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))
	_, err = f.svc.Create(ctx, request.CreateConversationRequest{AgentId: private.Id, Title: "mine"}, alice)
	assert.NoError(t, err)
}

func TestMessagesLifecycle(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)

	user, err := f.svc.AddMessage(ctx, conv.Id, request.CreateMessageRequest{Role: entity.RoleUser, Content: "q"}, bob)
	require.NoError(t, err)
	assert.Equal(t, entity.MessageText, user.Type)
	bot, err := f.svc.AddMessage(ctx, conv.Id, request.CreateMessageRequest{Role: entity.RoleAssistant, Content: "a"}, bob)
	require.NoError(t, err)

	_, err = f.svc.AddMessage(ctx, conv.Id, request.CreateMessageRequest{Role: entity.RoleUser, Content: "x"}, alice)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))

	got, err := f.svc.Get(ctx, conv.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.MessageCount)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "q", got.Messages[0].Content)

	edited, err := f.svc.UpdateMessage(ctx, user.Id, request.UpdateMessageRequest{Content: "q2"}, bob)
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	_, err = f.svc.UpdateMessage(ctx, bot.Id, request.UpdateMessageRequest{Content: "nope"}, bob)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))
	_, err = f.svc.UpdateMessage(ctx, user.Id, request.UpdateMessageRequest{Content: "nope"}, alice)
	assert.Equal(t, xerr.Forbidden, xerr.CodeOf(err))

	require.NoError(t, f.svc.DeleteMessage(ctx, bot.Id, bob))
	msgs, total, err := f.svc.ListMessages(ctx, conv.Id, request.ListMessagesRequest{Query: pagination.Query{Page: 1, Size: 20}}, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "q2", msgs[0].Content)

	got, err = f.svc.Get(ctx, conv.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.MessageCount)
}

func TestDeleteConversation(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, conv.Id, request.CreateMessageRequest{Role: entity.RoleUser, Content: "q"}, bob)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, conv.Id, bob))
	_, err = f.svc.Get(ctx, conv.Id, bob)
	assert.Equal(t, xerr.NotFound, xerr.CodeOf(err))

	items, total, err := f.svc.List(ctx, request.ListConversationsRequest{Query: pagination.Query{Page: 1, Size: 20}}, bob)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)

	deleted, _, err := f.svc.List(ctx, request.ListConversationsRequest{Query: pagination.Query{Page: 1, Size: 20}, Status: entity.StatusDeleted}, bob)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)
}

func TestListSearchTreatsWildcardsLiterally(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	done, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id, Title: "50% done"}, bob)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id, Title: "500 done"}, bob)
	require.NoError(t, err)

	items, total, err := f.svc.List(ctx, request.ListConversationsRequest{Query: pagination.Query{Page: 1, Size: 20}, Search: "50%"}, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, done.Id, items[0].Id)

	items, _, err = f.svc.List(ctx, request.ListConversationsRequest{Query: pagination.Query{Page: 1, Size: 20}, Search: "_"}, bob)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListFiltersAndStats(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id, Title: "planning"}, bob)
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id, Title: "debugging"}, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, a.Id, request.CreateMessageRequest{Role: entity.RoleUser, Content: "1"}, bob)
	require.NoError(t, err)
	_, err = f.svc.AddMessage(ctx, a.Id, request.CreateMessageRequest{Role: entity.RoleUser, Content: "2"}, bob)
	require.NoError(t, err)
	archived := entity.StatusArchived
	_, err = f.svc.Update(ctx, b.Id, request.UpdateConversationRequest{Status: &archived}, bob)
	require.NoError(t, err)

	items, _, err := f.svc.List(ctx, request.ListConversationsRequest{Query: pagination.Query{Page: 1, Size: 20}, Search: "plan"}, bob)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.Id, items[0].Id)

	st, err := f.svc.Stats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.TotalConversations)
	assert.Equal(t, int64(1), st.ActiveConversations)
	assert.Equal(t, int64(2), st.TotalMessages)
	assert.InDelta(t, 1.0, st.AverageMessagesPerConversation, 1e-9)

	empty, err := f.svc.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, empty.AverageMessagesPerConversation)
}

func TestChatWithoutModel(t *testing.T) {
	f := setup(t, false)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)
	_, err = f.svc.Chat(ctx, conv.Id, request.ChatRequest{Message: "hello"}, bob)
	assert.Equal(t, xerr.ServiceUnavailable, xerr.CodeOf(err))
}

func TestChatPersistsAndAccumulates(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)

	out, err := f.svc.Chat(ctx, conv.Id, request.ChatRequest{Message: "hello"}, bob)
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Content)
	assert.Equal(t, int64(30), out.TokensUsed)
	assert.InDelta(t, 0.00006, out.Cost, 1e-12)

	require.Len(t, f.chat.lastIn, 2)
	assert.Equal(t, schema.System, f.chat.lastIn[0].Role)
	assert.Equal(t, "be brief", f.chat.lastIn[0].Content)
	assert.Equal(t, "hello", f.chat.lastIn[1].Content)
	require.NotNil(t, f.chat.lastOpts.Model)
	assert.Equal(t, "gpt-4o-mini", *f.chat.lastOpts.Model)
	require.NotNil(t, f.chat.lastOpts.Temperature)
	assert.InDelta(t, 0.7, *f.chat.lastOpts.Temperature, 1e-6)

	temp := 0.1
	_, err = f.svc.Chat(ctx, conv.Id, request.ChatRequest{Message: "again", Temperature: &temp}, bob)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, *f.chat.lastOpts.Temperature, 1e-6)
	// 记忆窗口为 3: hello, hi there, again
	require.Len(t, f.chat.lastIn, 4)
	assert.Equal(t, schema.Assistant, f.chat.lastIn[2].Role)

	got, err := f.svc.Get(ctx, conv.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.MessageCount)
	assert.Equal(t, int64(60), got.TotalTokens)

	st, err := f.agents.Stats(ctx, f.agent.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.UsageCount)
	assert.Equal(t, int64(1), st.TotalConversations)
	assert.Equal(t, int64(4), st.TotalMessages)
	assert.Equal(t, int64(60), st.TotalTokensUsed)
	assert.InDelta(t, 100, st.SuccessRate, 1e-9)
	assert.Equal(t, 60, f.tokens[agentEntity.ProviderOpenAI])
}

func TestChatModelFailure(t *testing.T) {
	f := setup(t, true)
	f.chat.err = errors.New("upstream down")
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, conv.Id, request.ChatRequest{Message: "hello"}, bob)
	assert.Equal(t, xerr.BadGateway, xerr.CodeOf(err))

	st, err := f.agents.Stats(ctx, f.agent.Id, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.UsageCount)
	assert.InDelta(t, 0, st.SuccessRate, 1e-9)
}

func TestChatArchivedConversation(t *testing.T) {
	f := setup(t, true)
	ctx := context.Background()
	conv, err := f.svc.Create(ctx, request.CreateConversationRequest{AgentId: f.agent.Id}, bob)
	require.NoError(t, err)
	archived := entity.StatusArchived
	_, err = f.svc.Update(ctx, conv.Id, request.UpdateConversationRequest{Status: &archived}, bob)
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, conv.Id, request.ChatRequest{Message: "hello"}, bob)
	assert.Equal(t, xerr.BadRequest, xerr.CodeOf(err))
}
