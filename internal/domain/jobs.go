package domain

import (
	"context"
	"time"
)

// ContinuationJob — отложенное построение рекомендаций для большого списка избранного.
type ContinuationJob struct {
	ID          string    `json:"job_id,omitempty"`
	UserID      string    `json:"user_id"`
	ServerID    string    `json:"server_id"`
	ChannelID   string    `json:"channel_id"`
	MessageID   string    `json:"message_id"`
	FFNID       string    `json:"ffn_id"`
	Page        int       `json:"page"`
	RequestedAt time.Time `json:"requested_at"`
}

// Origin возвращает сообщение, на которое нужно ответить.
func (j ContinuationJob) Origin() MessageRef {
	return MessageRef{ChannelID: j.ChannelID, MessageID: j.MessageID}
}

// ContinuationQueue описывает очередь отложенных задач.
type ContinuationQueue interface {
	Enqueue(ctx context.Context, job ContinuationJob) error
	Receive(ctx context.Context) (ContinuationJob, AckFunc, error)
}

// AckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type AckFunc func(success bool) error
