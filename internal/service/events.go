package service

import (
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/bookswap/bookswap-service/internal/model"
)

// Publisher mirrors every notification onto the activity event stream.
// Publishing is best effort and happens after the storage transaction
// committed; a broker outage must never fail a user request.
type Publisher interface {
	Publish(n model.Notification)
}

func NewPublisher(producer sarama.SyncProducer, topic string, log *zap.Logger) Publisher {
	return &kafkaPublisher{
		producer: producer,
		topic:    topic,
		log:      log.Named("events"),
	}
}

type kafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func (p *kafkaPublisher) Publish(n model.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		p.log.Warn("marshal event", zap.Error(err))
		return
	}
	msg := &sarama.ProducerMessage{Topic: p.topic, Value: sarama.StringEncoder(data)}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.log.Warn("publish event", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

type nopPublisher struct{}

// NewNopPublisher is used when no broker is configured.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(model.Notification) {}
