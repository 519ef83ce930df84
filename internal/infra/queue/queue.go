package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"pulsecheck/internal/domain"
)

// New выбирает транспорт очереди по имени бэкенда: redis или rabbitmq.
func New(backend, key, amqpURL string, redisClient *redis.Client) (domain.PassQueue, error) {
	switch backend {
	case "", "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("queue: redis клиент не настроен")
		}
		return NewRedisPassQueue(redisClient, key), nil
	case "rabbitmq":
		return NewRabbitPassQueue(amqpURL, key)
	default:
		return nil, fmt.Errorf("queue: неизвестный бэкенд %q", backend)
	}
}
