package cron

import (
	"context"
	"log"
	"time"

	"leadmarket/config"
	requestRepo "leadmarket/database/repository/request"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
)

const (
	TypeSweepExpire      = "sweep:expire"
	TypeSweepAutoApprove = "sweep:autoapprove"
)

// Requests older than this without an assignment get expired.
const staleRequestAge = 24 * time.Hour

// Completed requests unreviewed for this long get auto-approved.
const reviewGracePeriod = 72 * time.Hour

// InitSweepWorker runs the periodic sweep scheduler and worker in background.
func InitSweepWorker(requests requestRepo.RequestRepository) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCronQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSweepExpire, handleExpireSweep(requests))
	mux.HandleFunc(TypeSweepAutoApprove, handleAutoApproveSweep(requests))

	scheduler := asynq.NewScheduler(redisOpts, &asynq.SchedulerOpts{
		Location: time.UTC,
	})
	if _, err := scheduler.Register("@every 1h", asynq.NewTask(TypeSweepExpire, nil)); err != nil {
		log.Printf("[SweepWorker] ❌ Failed to register expiry sweep: %v", err)
	}
	if _, err := scheduler.Register("@every 6h", asynq.NewTask(TypeSweepAutoApprove, nil)); err != nil {
		log.Printf("[SweepWorker] ❌ Failed to register auto-approve sweep: %v", err)
	}

	// Start Redis health monitor
	go monitorRedisConnection()

	go func() {
		log.Println("[SweepWorker] 🚀 Starting sweep scheduler...")
		if err := scheduler.Run(); err != nil {
			log.Printf("[SweepWorker] ❌ Scheduler stopped: %v", err)
		}
	}()

	// Start async worker with retry logic
	go func() {
		log.Println("[SweepWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[SweepWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[SweepWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()
}

func handleExpireSweep(requests requestRepo.RequestRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		cutoff := time.Now().UTC().Add(-staleRequestAge)
		expired, err := requests.ExpireStale(ctx, cutoff)
		if err != nil {
			log.Printf("[SweepWorker] ❌ Expiry sweep failed: %v", err)
			return err
		}
		if expired > 0 {
			log.Printf("[SweepWorker] ⏰ Expired %d stale requests", expired)
		}
		return nil
	}
}

func handleAutoApproveSweep(requests requestRepo.RequestRepository) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		now := time.Now().UTC()
		cutoff := now.Add(-reviewGracePeriod)
		approved, err := requests.AutoApproveCompleted(ctx, cutoff, now)
		if err != nil {
			log.Printf("[SweepWorker] ❌ Auto-approve sweep failed: %v", err)
			return err
		}
		if approved > 0 {
			log.Printf("[SweepWorker] ✅ Auto-approved %d completed requests", approved)
		}
		return nil
	}
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCronQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[SweepWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
