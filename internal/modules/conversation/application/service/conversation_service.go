package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"AgentPedia/internal/config"
	agentEntity "AgentPedia/internal/modules/agent/domain/entity"
	agentRepo "AgentPedia/internal/modules/agent/domain/repository"
	"AgentPedia/internal/modules/conversation/application/dto/request"
	"AgentPedia/internal/modules/conversation/application/dto/respond"
	"AgentPedia/internal/modules/conversation/domain/entity"
	"AgentPedia/internal/modules/conversation/domain/repository"
	"AgentPedia/pkg/caller"
	"AgentPedia/pkg/xerr"
	"AgentPedia/pkg/zlog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = xerr.NotFoundf("对话不存在或无权访问")
	ErrMessageNotFound      = xerr.NotFoundf("消息不存在")
	ErrChatUnavailable      = xerr.New(xerr.ServiceUnavailable, "聊天模型未配置")
	ErrChatFailed           = xerr.New(xerr.BadGateway, "模型调用失败")
)

// AgentLookup 对话依赖的 Agent 能力，由 agent 模块提供
type AgentLookup interface {
	Get(ctx context.Context, id int64, who caller.Caller) (*agentEntity.Agent, error)
	RecordUsage(ctx context.Context, id int64, u agentRepo.Usage) error
}

type ConversationService interface {
	Create(ctx context.Context, req request.CreateConversationRequest, who caller.Caller) (*entity.Conversation, error)
	List(ctx context.Context, req request.ListConversationsRequest, who caller.Caller) ([]entity.Conversation, int64, error)
	Stats(ctx context.Context, who caller.Caller) (*respond.ConversationStats, error)
	// Get 附带全部未删除消息
	Get(ctx context.Context, id int64, who caller.Caller) (*entity.Conversation, error)
	Update(ctx context.Context, id int64, req request.UpdateConversationRequest, who caller.Caller) (*entity.Conversation, error)
	Delete(ctx context.Context, id int64, who caller.Caller) error

	AddMessage(ctx context.Context, conversationID int64, req request.CreateMessageRequest, who caller.Caller) (*entity.Message, error)
	ListMessages(ctx context.Context, conversationID int64, req request.ListMessagesRequest, who caller.Caller) ([]entity.Message, int64, error)
	UpdateMessage(ctx context.Context, messageID int64, req request.UpdateMessageRequest, who caller.Caller) (*entity.Message, error)
	DeleteMessage(ctx context.Context, messageID int64, who caller.Caller) error

	Chat(ctx context.Context, conversationID int64, req request.ChatRequest, who caller.Caller) (*respond.ChatRespond, error)
}

// TokenObserver 聊天 token 用量指标
type TokenObserver interface {
	ObserveChatTokens(provider string, tokens int)
}

type Option func(*conversationServiceImpl)

func WithTokenObserver(obs TokenObserver) Option {
	return func(s *conversationServiceImpl) { s.tokens = obs }
}

type conversationServiceImpl struct {
	repo      repository.ConversationRepository
	agents    AgentLookup
	chatModel model.BaseChatModel
	tokens    TokenObserver
	now       func() time.Time
}

// NewConversationService chatModel 为 nil 时 Chat 返回 503
func NewConversationService(repo repository.ConversationRepository, agents AgentLookup, chatModel model.BaseChatModel, opts ...Option) ConversationService {
	s := &conversationServiceImpl{
		repo:      repo,
		agents:    agents,
		chatModel: chatModel,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *conversationServiceImpl) Create(ctx context.Context, req request.CreateConversationRequest, who caller.Caller) (*entity.Conversation, error) {
	agent, err := s.agents.Get(ctx, req.AgentId, who)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "与 " + agent.Name + " 的对话"
	}
	conv := &entity.Conversation{
		Title:   title,
		UserId:  who.UserID,
		AgentId: agent.Id,
		Status:  entity.StatusActive,
	}
	if err := s.repo.CreateConversation(ctx, conv); err != nil {
		zlog.Error("创建对话失败", zap.Error(err), zap.Int64("user_id", who.UserID), zap.Int64("agent_id", agent.Id))
		return nil, xerr.ErrServerError
	}
	zlog.Info("创建对话", zap.Int64("conversation_id", conv.Id), zap.Int64("agent_id", agent.Id))
	return conv, nil
}

func (s *conversationServiceImpl) List(ctx context.Context, req request.ListConversationsRequest, who caller.Caller) ([]entity.Conversation, int64, error) {
	convs, total, err := s.repo.ListConversations(ctx, repository.ConversationFilter{
		UserID:  who.UserID,
		AgentID: req.AgentId,
		Status:  req.Status,
		Search:  strings.TrimSpace(req.Search),
	}, req.Offset(), req.Limit())
	if err != nil {
		zlog.Error("查询对话列表失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, 0, xerr.ErrServerError
	}
	return convs, total, nil
}

func (s *conversationServiceImpl) Stats(ctx context.Context, who caller.Caller) (*respond.ConversationStats, error) {
	st, err := s.repo.Stats(ctx, who.UserID)
	if err != nil {
		zlog.Error("统计对话失败", zap.Error(err), zap.Int64("user_id", who.UserID))
		return nil, xerr.ErrServerError
	}
	out := &respond.ConversationStats{
		TotalConversations:  st.TotalConversations,
		ActiveConversations: st.ActiveConversations,
		TotalMessages:       st.TotalMessages,
		TotalTokens:         st.TotalTokens,
		TotalCost:           st.TotalCost,
	}
	if st.TotalConversations > 0 {
		out.AverageMessagesPerConversation = float64(st.TotalMessages) / float64(st.TotalConversations)
	}
	return out, nil
}

// loadOwned 非本人或已删除的对话一律视为不存在
func (s *conversationServiceImpl) loadOwned(ctx context.Context, id int64, who caller.Caller) (*entity.Conversation, error) {
	conv, err := s.repo.GetConversationById(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		zlog.Error("查询对话失败", zap.Error(err), zap.Int64("conversation_id", id))
		return nil, xerr.ErrServerError
	}
	if conv.UserId != who.UserID || conv.Status == entity.StatusDeleted {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

func (s *conversationServiceImpl) Get(ctx context.Context, id int64, who caller.Caller) (*entity.Conversation, error) {
	conv, err := s.loadOwned(ctx, id, who)
	if err != nil {
		return nil, err
	}
	msgs, _, err := s.repo.ListMessages(ctx, id, 0, -1)
	if err != nil {
		zlog.Error("查询消息失败", zap.Error(err), zap.Int64("conversation_id", id))
		return nil, xerr.ErrServerError
	}
	conv.Messages = msgs
	return conv, nil
}

func (s *conversationServiceImpl) Update(ctx context.Context, id int64, req request.UpdateConversationRequest, who caller.Caller) (*entity.Conversation, error) {
	if _, err := s.loadOwned(ctx, id, who); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if req.Title != nil {
		fields["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if len(fields) > 0 {
		if err := s.repo.UpdateConversation(ctx, id, fields); err != nil {
			zlog.Error("更新对话失败", zap.Error(err), zap.Int64("conversation_id", id))
			return nil, xerr.ErrServerError
		}
	}
	return s.loadOwned(ctx, id, who)
}

func (s *conversationServiceImpl) Delete(ctx context.Context, id int64, who caller.Caller) error {
	if _, err := s.loadOwned(ctx, id, who); err != nil {
		return err
	}
	if err := s.repo.MarkDeleted(ctx, id); err != nil {
		zlog.Error("删除对话失败", zap.Error(err), zap.Int64("conversation_id", id))
		return xerr.ErrServerError
	}
	zlog.Info("删除对话", zap.Int64("conversation_id", id), zap.Int64("user_id", who.UserID))
	return nil
}

func (s *conversationServiceImpl) AddMessage(ctx context.Context, conversationID int64, req request.CreateMessageRequest, who caller.Caller) (*entity.Message, error) {
	if _, err := s.loadOwned(ctx, conversationID, who); err != nil {
		return nil, err
	}
	msg := &entity.Message{
		ConversationId: conversationID,
		Role:           req.Role,
		Content:        req.Content,
		Type:           req.Type,
		Attachments:    req.Attachments,
		ToolCalls:      req.ToolCalls,
		ToolResults:    req.ToolResults,
	}
	return msg, s.saveMessage(ctx, msg)
}

func (s *conversationServiceImpl) saveMessage(ctx context.Context, msg *entity.Message) error {
	if msg.Type == "" {
		msg.Type = entity.MessageText
	}
	msg.CreatedAt = s.now()
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		zlog.Error("保存消息失败", zap.Error(err), zap.Int64("conversation_id", msg.ConversationId))
		return xerr.ErrServerError
	}
	return nil
}

func (s *conversationServiceImpl) ListMessages(ctx context.Context, conversationID int64, req request.ListMessagesRequest, who caller.Caller) ([]entity.Message, int64, error) {
	if _, err := s.loadOwned(ctx, conversationID, who); err != nil {
		return nil, 0, err
	}
	msgs, total, err := s.repo.ListMessages(ctx, conversationID, req.Offset(), req.Limit())
	if err != nil {
		zlog.Error("查询消息失败", zap.Error(err), zap.Int64("conversation_id", conversationID))
		return nil, 0, xerr.ErrServerError
	}
	return msgs, total, nil
}

func (s *conversationServiceImpl) loadMessage(ctx context.Context, messageID int64, who caller.Caller) (*entity.Message, error) {
	msg, err := s.repo.GetMessageById(ctx, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		zlog.Error("查询消息失败", zap.Error(err), zap.Int64("message_id", messageID))
		return nil, xerr.ErrServerError
	}
	conv, err := s.repo.GetConversationById(ctx, msg.ConversationId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		zlog.Error("查询对话失败", zap.Error(err), zap.Int64("conversation_id", msg.ConversationId))
		return nil, xerr.ErrServerError
	}
	if conv.UserId != who.UserID {
		return nil, xerr.New(xerr.Forbidden, "无权限操作此消息")
	}
	return msg, nil
}

// UpdateMessage 只允许修改用户消息
func (s *conversationServiceImpl) UpdateMessage(ctx context.Context, messageID int64, req request.UpdateMessageRequest, who caller.Caller) (*entity.Message, error) {
	msg, err := s.loadMessage(ctx, messageID, who)
	if err != nil {
		return nil, err
	}
	if msg.Role != entity.RoleUser {
		return nil, xerr.New(xerr.Forbidden, "只能修改用户消息")
	}
	if err := s.repo.UpdateMessage(ctx, messageID, map[string]interface{}{"content": req.Content, "is_edited": true}); err != nil {
		zlog.Error("更新消息失败", zap.Error(err), zap.Int64("message_id", messageID))
		return nil, xerr.ErrServerError
	}
	msg.Content, msg.IsEdited = req.Content, true
	return msg, nil
}

func (s *conversationServiceImpl) DeleteMessage(ctx context.Context, messageID int64, who caller.Caller) error {
	msg, err := s.loadMessage(ctx, messageID, who)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteMessage(ctx, msg); err != nil {
		zlog.Error("删除消息失败", zap.Error(err), zap.Int64("message_id", messageID))
		return xerr.ErrServerError
	}
	return nil
}

// Chat 保存用户消息，携带记忆窗口调用模型，保存回复并累计用量
func (s *conversationServiceImpl) Chat(ctx context.Context, conversationID int64, req request.ChatRequest, who caller.Caller) (*respond.ChatRespond, error) {
	if s.chatModel == nil {
		return nil, ErrChatUnavailable
	}
	conv, err := s.loadOwned(ctx, conversationID, who)
	if err != nil {
		return nil, err
	}
	if conv.Status != entity.StatusActive {
		return nil, xerr.New(xerr.BadRequest, "对话已归档")
	}
	agent, err := s.agents.Get(ctx, conv.AgentId, who)
	if err != nil {
		return nil, err
	}
	if agent.Status != agentEntity.StatusActive {
		return nil, xerr.New(xerr.BadRequest, "Agent未启用")
	}
	if agent.MaxConversationLength > 0 && conv.MessageCount/2 >= int64(agent.MaxConversationLength) {
		return nil, xerr.New(xerr.BadRequest, "对话长度已达上限")
	}

	userMsg := &entity.Message{ConversationId: conv.Id, Role: entity.RoleUser, Content: req.Message}
	if err := s.saveMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	history, err := s.history(ctx, conv.Id, agent, userMsg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	reply, err := s.chatModel.Generate(ctx, history, chatOptions(agent, req)...)
	elapsed := time.Since(start)
	if err != nil {
		zlog.Error("模型调用失败", zap.Error(err), zap.Int64("agent_id", agent.Id), zap.String("model", agent.ModelName))
		s.recordUsage(ctx, agent.Id, agentRepo.Usage{
			ResponseTimeMs:  float64(elapsed.Milliseconds()),
			NewMessages:     1,
			NewConversation: conv.MessageCount == 0,
		})
		return nil, ErrChatFailed
	}

	tokens := tokensOf(reply, history)
	if s.tokens != nil {
		s.tokens.ObserveChatTokens(agent.ModelProvider, int(tokens))
	}
	cost := float64(tokens) / 1000 * config.GetConfig().AIConfig.ChatModel.CostPer1KTokens
	assistantMsg := &entity.Message{
		ConversationId: conv.Id,
		Role:           entity.RoleAssistant,
		Content:        reply.Content,
		TokensUsed:     tokens,
		Cost:           cost,
		ProcessingTime: elapsed.Seconds(),
	}
	if err := s.saveMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	s.recordUsage(ctx, agent.Id, agentRepo.Usage{
		Tokens:          tokens,
		Cost:            cost,
		ResponseTimeMs:  float64(elapsed.Milliseconds()),
		Success:         true,
		NewMessages:     2,
		NewConversation: conv.MessageCount == 0,
	})

	return &respond.ChatRespond{
		ConversationId: conv.Id,
		MessageId:      assistantMsg.Id,
		Content:        assistantMsg.Content,
		TokensUsed:     tokens,
		Cost:           cost,
		ProcessingTime: assistantMsg.ProcessingTime,
	}, nil
}

// history 系统提示词在前，开启记忆时附带最近 memory_window 条消息
func (s *conversationServiceImpl) history(ctx context.Context, conversationID int64, agent *agentEntity.Agent, current *entity.Message) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, agent.MemoryWindow+2)
	if strings.TrimSpace(agent.SystemPrompt) != "" {
		out = append(out, schema.SystemMessage(agent.SystemPrompt))
	}
	if !agent.EnableMemory || agent.MemoryWindow <= 0 {
		return append(out, schema.UserMessage(current.Content)), nil
	}
	recent, err := s.repo.RecentMessages(ctx, conversationID, agent.MemoryWindow)
	if err != nil {
		zlog.Error("读取对话历史失败", zap.Error(err), zap.Int64("conversation_id", conversationID))
		return nil, xerr.ErrServerError
	}
	for _, m := range recent {
		switch m.Role {
		case entity.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case entity.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		case entity.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content))
		}
	}
	return out, nil
}

func chatOptions(agent *agentEntity.Agent, req request.ChatRequest) []model.Option {
	temperature := agent.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := agent.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	opts := []model.Option{
		model.WithTemperature(float32(temperature)),
		model.WithTopP(float32(agent.TopP)),
	}
	if maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(maxTokens))
	}
	if agent.ModelName != "" {
		opts = append(opts, model.WithModel(agent.ModelName))
	}
	return opts
}

// tokensOf 优先使用模型返回的用量，缺失时按字符数估算
func tokensOf(reply *schema.Message, history []*schema.Message) int64 {
	if reply.ResponseMeta != nil && reply.ResponseMeta.Usage != nil && reply.ResponseMeta.Usage.TotalTokens > 0 {
		return int64(reply.ResponseMeta.Usage.TotalTokens)
	}
	chars := len([]rune(reply.Content))
	for _, m := range history {
		chars += len([]rune(m.Content))
	}
	return int64((chars + 3) / 4)
}

func (s *conversationServiceImpl) recordUsage(ctx context.Context, agentID int64, u agentRepo.Usage) {
	if err := s.agents.RecordUsage(ctx, agentID, u); err != nil {
		zlog.Warn("记录 Agent 用量失败", zap.Error(err), zap.Int64("agent_id", agentID))
	}
}
