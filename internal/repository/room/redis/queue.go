package redis

import (
	"encoding/json"
	"fmt"

	"github.com/roomtune/server/internal/domain"
)

func (r repo) encodeQueue(queue []domain.QueueItem) ([]interface{}, error) {
	items := make([]interface{}, 0, len(queue))
	for _, item := range queue {
		b, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal queue item: %w", err)
		}
		items = append(items, b)
	}

	return items, nil
}

func (r repo) decodeQueue(raw []string) ([]domain.QueueItem, error) {
	queue := make([]domain.QueueItem, 0, len(raw))
	for _, s := range raw {
		var item domain.QueueItem
		if err := json.Unmarshal([]byte(s), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal queue item: %w", err)
		}
		queue = append(queue, item)
	}

	return queue, nil
}
