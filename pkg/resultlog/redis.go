package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config - настройки публикации результатов в Redis
type Config struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	TTL      int    `json:"ttl" yaml:"ttl"` // секунды жизни state-ключа
}

// MutationResult представляет итог пакетной мутации таблицы,
// публикуемый в Redis после завершения (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  pgtools:update:<table>:state  <JSON>  EX <ttl>  — для GET-запросов наблюдателя
//	PUB  pgtools:update:<table>                          — для event-driven маршрутизации
type MutationResult struct {
	Table       string    `json:"table"`
	Status      string    `json:"status"` // "success" | "failed"
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
	RowsUpdated int64     `json:"rows_updated"`
	BatchSize   int       `json:"batch_size"`
	Error       *string   `json:"error,omitempty"`
}

// RedisPublisher публикует итоги пакетных мутаций в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает новый Redis publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// Publish публикует итог пакетной мутации:
//   - SET pgtools:update:<table>:state <JSON> EX <ttl>  → для опроса (polling)
//   - PUBLISH pgtools:update:<table> <JSON>             → для подписки (pub/sub)
//
// Вызывается независимо от результата выполнения (success или failed).
// execErr == nil означает успешное выполнение.
func (p *RedisPublisher) Publish(ctx context.Context, result MutationResult, execErr error) error {
	payload, err := buildPayload(result, execErr)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	// SET ключ с TTL — наблюдатель может GET для получения последнего состояния
	if err := p.client.Set(ctx, stateKey(result.Table), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}

	// PUBLISH событие — наблюдатель может SUBSCRIBE для event-driven маршрутизации
	if err := p.client.Publish(ctx, eventChannel(result.Table), payload).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH failed: %w", err)
	}

	return nil
}

// buildPayload выставляет статус по итогу выполнения и сериализует
// результат в JSON для SET и PUBLISH
func buildPayload(result MutationResult, execErr error) ([]byte, error) {
	if execErr != nil {
		result.Status = "failed"
		errStr := execErr.Error()
		result.Error = &errStr
	} else {
		result.Status = "success"
		result.Error = nil
	}
	return json.Marshal(result)
}

func stateKey(table string) string {
	return fmt.Sprintf("pgtools:update:%s:state", table)
}

func eventChannel(table string) string {
	return fmt.Sprintf("pgtools:update:%s", table)
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
