package redis

import (
	"context"
	"fmt"

	"github.com/roomtune/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomName string) string {
	return "room:" + roomName + ":player"
}

func (r repo) getQueueKey(roomName string) string {
	return "room:" + roomName + ":queue"
}

func (r repo) IsSnapshotExists(ctx context.Context, roomName string) (bool, error) {
	playerKey := r.getPlayerKey(roomName)
	res, err := r.rc.Exists(ctx, playerKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if snapshot exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) SetSnapshot(ctx context.Context, params *room.SetSnapshotParams) error {
	items, err := r.encodeQueue(params.Queue)
	if err != nil {
		return err
	}

	playerKey := r.getPlayerKey(params.RoomName)
	queueKey := r.getQueueKey(params.RoomName)

	pipe := r.rc.TxPipeline()
	r.HSetStruct(ctx, pipe, playerKey, params.Player)
	pipe.Expire(ctx, playerKey, r.expireDuration)
	pipe.Del(ctx, queueKey)
	if len(items) > 0 {
		pipe.RPush(ctx, queueKey, items...)
		pipe.Expire(ctx, queueKey, r.expireDuration)
	}

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set snapshot: %w", err)
	}

	return nil
}

func (r repo) GetSnapshot(ctx context.Context, roomName string) (room.Snapshot, error) {
	exists, err := r.IsSnapshotExists(ctx, roomName)
	if err != nil {
		return room.Snapshot{}, err
	}
	if !exists {
		return room.Snapshot{}, room.ErrSnapshotNotFound
	}

	playerKey := r.getPlayerKey(roomName)
	var player room.Player
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&player); err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to get player: %w", err)
	}

	queueKey := r.getQueueKey(roomName)
	raw, err := r.rc.LRange(ctx, queueKey, 0, -1).Result()
	if err != nil {
		return room.Snapshot{}, fmt.Errorf("failed to get queue: %w", err)
	}

	queue, err := r.decodeQueue(raw)
	if err != nil {
		return room.Snapshot{}, err
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)
	r.rc.Expire(ctx, queueKey, r.expireDuration)

	return room.Snapshot{
		Player: player,
		Queue:  queue,
	}, nil
}

func (r repo) RemoveSnapshot(ctx context.Context, roomName string) error {
	res, err := r.rc.Del(ctx, r.getPlayerKey(roomName), r.getQueueKey(roomName)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}

	if res == 0 {
		return room.ErrSnapshotNotFound
	}

	return nil
}
