package mq

import (
	"context"
	"encoding/json"

	"AgentPedia/internal/modules/catalog/domain/entity"
)

const HeaderEventOp = "x-catalog-op"

// ChangePublisher 把目录变更写入消息队列，key 为 agent id
type ChangePublisher struct {
	pub   Publisher
	topic string
}

func NewChangePublisher(pub Publisher, topic string) *ChangePublisher {
	return &ChangePublisher{pub: pub, topic: topic}
}

func (p *ChangePublisher) Notify(ctx context.Context, ev entity.ChangeEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.pub.Publish(ctx, Message{
		Topic:   p.topic,
		Key:     []byte(ev.AgentID),
		Value:   body,
		Headers: map[string]string{HeaderEventOp: string(ev.Op)},
	})
	return err
}

// DecodeChange 解析变更消息
func DecodeChange(msg Message) (entity.ChangeEvent, error) {
	var ev entity.ChangeEvent
	err := json.Unmarshal(msg.Value, &ev)
	return ev, err
}
