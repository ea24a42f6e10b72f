package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisTenderNumberGenerator ведёт счётчик номеров тендеров в Redis.
type RedisTenderNumberGenerator struct {
	client redis.Cmdable
}

// NewRedisTenderNumberGenerator создаёт новый экземпляр RedisTenderNumberGenerator.
func NewRedisTenderNumberGenerator(client redis.Cmdable) *RedisTenderNumberGenerator {
	return &RedisTenderNumberGenerator{client: client}
}

func tenderNumberKey(year int) string {
	return fmt.Sprintf("tender:number:%d", year)
}

// NextTenderNumber возвращает следующий номер за год.
func (g *RedisTenderNumberGenerator) NextTenderNumber(ctx context.Context, year int) (int64, error) {
	value, err := g.client.Incr(ctx, tenderNumberKey(year)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate tender number: %w", err)
	}
	return value, nil
}
