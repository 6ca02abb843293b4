package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"PersonalAssistant/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	taskKeyPrefix  = "assistant:task:"
	defaultTaskTTL = 24 * time.Hour
)

type ITaskCache interface {
	SetTask(ctx context.Context, t entity.PersistedTask) error
	GetTask(ctx context.Context, id string) (entity.PersistedTask, error)
	DeleteTask(ctx context.Context, id string) error
}

type redisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func New() ITaskCache {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	ttl, err := time.ParseDuration(os.Getenv("REDIS_TASK_TTL"))
	if err != nil || ttl <= 0 {
		ttl = defaultTaskTTL
	}

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, ttl)
}

func NewWithClient(client *redis.Client, ttl time.Duration) ITaskCache {
	if ttl <= 0 {
		ttl = defaultTaskTTL
	}
	return &redisClient{client: client, ttl: ttl}
}

func (r *redisClient) SetTask(ctx context.Context, t entity.PersistedTask) error {
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, taskKeyPrefix+t.ID, body, r.ttl).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching task %s: %v", t.ID, err))
		return err
	}
	logrus.Debug(fmt.Sprintf("Cached task %s for %v", t.ID, r.ttl))
	return nil
}

func (r *redisClient) GetTask(ctx context.Context, id string) (entity.PersistedTask, error) {
	val, err := r.client.Get(ctx, taskKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("Task %s not cached", id))
		return entity.PersistedTask{}, err
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting cached task %s: %v", id, err))
		return entity.PersistedTask{}, err
	}

	var t entity.PersistedTask
	if err := json.Unmarshal(val, &t); err != nil {
		return entity.PersistedTask{}, err
	}
	return t, nil
}

func (r *redisClient) DeleteTask(ctx context.Context, id string) error {
	result, err := r.client.Del(ctx, taskKeyPrefix+id).Result()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error deleting cached task %s: %v", id, err))
		return err
	}

	if result == 0 {
		logrus.Debug(fmt.Sprintf("Task key %s not found for deletion", id))
	}
	return nil
}
