package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"relief-tokens/internal/models"
)

// LifecycleMessage is the wire shape of a token lifecycle event.
type LifecycleMessage struct {
	Action        string         `json:"action"`
	Token         models.Token   `json:"token"`
	RevokedTokens []models.Token `json:"revoked_tokens,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

func (p *Producer) publish(action string, token models.Token, revoked []models.Token) error {
	msg := LifecycleMessage{
		Action:        action,
		Token:         token,
		RevokedTokens: revoked,
		OccurredAt:    time.Now(),
	}
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(token.TokenCode),
			Value: msgBytes,
		},
	)
}

// PublishTokenCheckedIn streams a redemption to the lifecycle topic.
func (p *Producer) PublishTokenCheckedIn(token models.Token) error {
	return p.publish(models.AuditCheckedIn, token, nil)
}

// PublishTokenUndone streams a reversed redemption.
func (p *Producer) PublishTokenUndone(token models.Token) error {
	return p.publish(models.AuditUndoCheckin, token, nil)
}

// PublishTokenReissued streams a reissue along with the tokens it revoked.
func (p *Producer) PublishTokenReissued(newToken models.Token, revoked []models.Token) error {
	return p.publish(models.AuditReissue, newToken, revoked)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
