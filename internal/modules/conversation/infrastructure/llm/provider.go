package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"AgentPedia/internal/config"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// ErrNotConfigured 未配置聊天模型时返回，服务端据此关闭对话能力
var ErrNotConfigured = errors.New("chat model provider not configured")

type ChatModelMeta struct {
	Provider string
	Model    string
}

// NewChatModelFromConfig 按 aiConfig.chatModel 构建默认聊天模型，Agent 的模型名在调用时通过 option 覆盖
func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}
	cc := conf.AIConfig.ChatModel
	provider := strings.ToLower(strings.TrimSpace(cc.Provider))

	switch provider {
	case "", "disabled", "none":
		return nil, ChatModelMeta{}, ErrNotConfigured
	case "openai", "azure_openai":
		return newOpenAI(ctx, cc, provider == "azure_openai")
	case "ark":
		return newArk(ctx, cc)
	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}

func newOpenAI(ctx context.Context, cc config.ChatModelConfig, azure bool) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := firstNonEmpty(cc.APIKey, os.Getenv("OPENAI_API_KEY"))
	modelName := firstNonEmpty(cc.Model, os.Getenv("OPENAI_MODEL"))
	baseURL := firstNonEmpty(cc.BaseURL, os.Getenv("OPENAI_BASE_URL"))
	if apiKey == "" || modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
	}

	cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
		APIKey:     apiKey,
		Model:      modelName,
		BaseURL:    baseURL,
		ByAzure:    azure || cc.ByAzure,
		APIVersion: strings.TrimSpace(cc.AzureAPIVersion),
		Timeout:    timeoutOf(cc),
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil
}

func newArk(ctx context.Context, cc config.ChatModelConfig) (model.BaseChatModel, ChatModelMeta, error) {
	apiKey := firstNonEmpty(cc.APIKey, os.Getenv("ARK_API_KEY"))
	accessKey := firstNonEmpty(cc.AccessKey, os.Getenv("ARK_ACCESS_KEY"))
	secretKey := firstNonEmpty(cc.SecretKey, os.Getenv("ARK_SECRET_KEY"))
	modelName := firstNonEmpty(cc.Model, os.Getenv("ARK_MODEL_ID"))
	if apiKey == "" && (accessKey == "" || secretKey == "") {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey or accessKey/secretKey")
	}
	if modelName == "" {
		return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing model")
	}

	timeout := timeoutOf(cc)
	retryTimes := 2
	if cc.RetryTimes > 0 {
		retryTimes = cc.RetryTimes
	}
	cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
		APIKey:     apiKey,
		AccessKey:  accessKey,
		SecretKey:  secretKey,
		Model:      modelName,
		BaseURL:    firstNonEmpty(cc.BaseURL, os.Getenv("ARK_BASE_URL")),
		Region:     firstNonEmpty(cc.Region, os.Getenv("ARK_REGION")),
		Timeout:    &timeout,
		RetryTimes: &retryTimes,
	})
	if err != nil {
		return nil, ChatModelMeta{}, err
	}
	return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil
}

func timeoutOf(cc config.ChatModelConfig) time.Duration {
	if cc.TimeoutSeconds > 0 {
		return time.Duration(cc.TimeoutSeconds) * time.Second
	}
	return 2 * time.Minute
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
