package kafka

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"AgentPedia/internal/modules/catalog/infrastructure/mq"
	"AgentPedia/pkg/zlog"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

const (
	defaultHandleAttempts = 3
	defaultHandleBackoff  = 200 * time.Millisecond
)

type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topics   []string
	ClientID string
	// HandleAttempts 单条消息在本轮会话内的最大处理次数
	HandleAttempts int
	// HandleBackoff 首次重试等待，之后逐次翻倍
	HandleBackoff time.Duration
}

type saramaConsumer struct {
	cg       sarama.ConsumerGroup
	topics   []string
	attempts int
	backoff  time.Duration
}

func NewConsumer(cfg ConsumerConfig) (mq.Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers is empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("kafka consumer group id is empty")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("kafka topics is empty")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	// 索引消费者首次启动需要补齐历史事件
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	sc.Consumer.Group.Session.Timeout = 30 * time.Second
	sc.ClientID = strings.TrimSpace(cfg.ClientID)

	cg, err := sarama.NewConsumerGroup(cfg.Brokers, strings.TrimSpace(cfg.GroupID), sc)
	if err != nil {
		return nil, err
	}
	return &saramaConsumer{cg: cg, topics: cfg.Topics, attempts: cfg.HandleAttempts, backoff: cfg.HandleBackoff}, nil
}

func (c *saramaConsumer) Run(ctx context.Context, handler mq.Handler) error {
	if handler == nil {
		return errors.New("handler is nil")
	}
	h := newConsumerGroupHandler(handler, c.attempts, c.backoff)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.cg.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// 上轮因处理失败退出，稍等再重新加入消费组
		if h.failed.Swap(false) {
			if err := sleepCtx(ctx, h.backoff); err != nil {
				return err
			}
		}
	}
}

func (c *saramaConsumer) Close() error {
	if c == nil {
		return nil
	}
	return c.cg.Close()
}

type consumerGroupHandler struct {
	h        mq.Handler
	attempts int
	backoff  time.Duration
	failed   atomic.Bool
}

func newConsumerGroupHandler(h mq.Handler, attempts int, backoff time.Duration) *consumerGroupHandler {
	if attempts <= 0 {
		attempts = defaultHandleAttempts
	}
	if backoff <= 0 {
		backoff = defaultHandleBackoff
	}
	return &consumerGroupHandler{h: h, attempts: attempts, backoff: backoff}
}

func (*consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 只提交处理成功的消息；重试耗尽后返回错误结束本轮会话，
// 失败消息及其后的 offset 均未提交，下一轮从上次提交处重新投递
func (h *consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for m := range claim.Messages() {
		if err := h.handle(sess.Context(), m); err != nil {
			h.failed.Store(true)
			zlog.Error("Kafka 消息处理失败，等待重新投递",
				zap.String("topic", m.Topic),
				zap.Int32("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			return err
		}
		sess.MarkMessage(m, "")
	}
	return nil
}

func (h *consumerGroupHandler) handle(ctx context.Context, m *sarama.ConsumerMessage) error {
	msg := toMessage(m)
	wait := h.backoff
	for attempt := 1; ; attempt++ {
		err := h.h.Handle(ctx, msg)
		if err == nil {
			return nil
		}
		if attempt >= h.attempts {
			return err
		}
		zlog.Warn("Kafka 消息处理失败，稍后重试",
			zap.String("topic", m.Topic),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if sleepCtx(ctx, wait) != nil {
			return err
		}
		wait *= 2
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toMessage(m *sarama.ConsumerMessage) mq.Message {
	msg := mq.Message{Topic: m.Topic, Key: m.Key, Value: m.Value}
	if len(m.Headers) > 0 {
		msg.Headers = make(map[string]string, len(m.Headers))
		for _, hdr := range m.Headers {
			if hdr == nil || len(hdr.Key) == 0 {
				continue
			}
			msg.Headers[string(hdr.Key)] = string(hdr.Value)
		}
	}
	return msg
}
