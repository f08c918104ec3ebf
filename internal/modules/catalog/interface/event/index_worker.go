package event

import (
	"context"
	"errors"

	"AgentPedia/internal/modules/catalog/domain/entity"
	"AgentPedia/internal/modules/catalog/infrastructure/mq"
	"AgentPedia/pkg/zlog"

	"go.uber.org/zap"
)

// ChangeApplier 将目录变更应用到搜索索引
type ChangeApplier interface {
	ApplyChange(ctx context.Context, ev entity.ChangeEvent) error
}

type IndexWorker struct {
	consumer mq.Consumer
	applier  ChangeApplier
}

func NewIndexWorker(consumer mq.Consumer, applier ChangeApplier) *IndexWorker {
	return &IndexWorker{consumer: consumer, applier: applier}
}

func (w *IndexWorker) Run(ctx context.Context) error {
	if w == nil || w.consumer == nil {
		return errors.New("consumer is nil")
	}
	if w.applier == nil {
		return errors.New("applier is nil")
	}
	zlog.Info("目录索引同步已启动")
	return w.consumer.Run(ctx, w)
}

func (w *IndexWorker) Handle(ctx context.Context, msg mq.Message) error {
	ev, err := mq.DecodeChange(msg)
	if err != nil || ev.AgentID == "" {
		// 格式错误的消息直接丢弃
		zlog.Error("目录变更消息格式错误", zap.Error(err), zap.ByteString("key", msg.Key))
		return nil
	}
	if err := w.applier.ApplyChange(ctx, ev); err != nil {
		zlog.Error("应用目录变更失败", zap.Error(err), zap.String("agent_id", ev.AgentID), zap.String("op", string(ev.Op)))
		return err
	}
	return nil
}
