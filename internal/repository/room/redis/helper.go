package redis

import (
	"context"
	"reflect"

	"github.com/redis/go-redis/v9"
)

func (r repo) HSetStruct(ctx context.Context, c redis.Pipeliner, key string, value interface{}) error {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	fields := make(map[string]interface{})
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tag := t.Field(i).Tag.Get("redis")
		if tag == "" {
			tag = t.Field(i).Name
		}

		if field.Kind() == reflect.Ptr && field.IsNil() {
			continue
		}

		if field.Kind() == reflect.Ptr {
			fields[tag] = field.Elem().Interface()
		} else {
			fields[tag] = field.Interface()
		}
	}

	return c.HSet(ctx, key, fields).Err()
}

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}
