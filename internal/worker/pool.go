package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"clipnotes-backend/internal/models"
	"clipnotes-backend/internal/services"
)

// FrameQueue is the Redis list feeding the background frame workers.
const FrameQueue = "queue:frame-extraction"

const maxAttempts = 3

// FrameJob asks the pool to pre-extract frames for a freshly summarized
// video so the first frames request from a client is already a cache hit.
type FrameJob struct {
	VideoID    string `json:"video_id"`
	MaxSeconds int    `json:"max_seconds"`
	Attempts   int    `json:"attempts"`
}

type videoStore interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
}

type frameStore interface {
	UpsertBatch(ctx context.Context, frames []models.Frame) error
	ListByVideo(ctx context.Context, videoID string) ([]models.Frame, error)
}

type Pool struct {
	redis       *redis.Client
	videoRepo   videoStore
	frameRepo   frameStore
	frames      *services.FrameService
	workerCount int
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, videoRepo videoStore, frameRepo frameStore, frames *services.FrameService, workerCount int) *Pool {
	return &Pool{
		redis:       redisClient,
		videoRepo:   videoRepo,
		frameRepo:   frameRepo,
		frames:      frames,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d frame worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Frame worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		result, err := p.redis.BLPop(ctx, 30*time.Second, FrameQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job FrameJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Frame worker %d: failed to parse job: %v", id, err)
			continue
		}

		// One extraction per video at a time, across all instances.
		lockKey := fmt.Sprintf("frame_lock:%s", job.VideoID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		if err := p.process(ctx, &job); err != nil {
			log.Printf("Frame worker %d: job for %s failed: %v", id, job.VideoID, err)
			p.requeue(ctx, job)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *FrameJob) error {
	// Another worker or a direct API call may have extracted already.
	if cached, err := p.frameRepo.ListByVideo(ctx, job.VideoID); err == nil && len(cached) > 0 {
		return nil
	}

	video, err := p.videoRepo.GetByID(ctx, job.VideoID)
	if err != nil {
		return fmt.Errorf("video lookup failed: %w", err)
	}

	markdown := ""
	if video.SummaryEN != nil {
		markdown = *video.SummaryEN
	}
	if markdown == "" && video.SummaryZH != nil {
		markdown = *video.SummaryZH
	}
	if markdown == "" {
		return nil // Nothing to extract from
	}

	frames, err := p.frames.Extract(ctx, job.VideoID, markdown, job.MaxSeconds)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return nil
	}

	if err := p.frameRepo.UpsertBatch(ctx, frames); err != nil {
		return fmt.Errorf("failed to record frames: %w", err)
	}

	log.Printf("Prefetched %d frames for %s", len(frames), job.VideoID)
	return nil
}

func (p *Pool) requeue(ctx context.Context, job FrameJob) {
	job.Attempts++
	if job.Attempts >= maxAttempts {
		log.Printf("Giving up on frame prefetch for %s after %d attempts", job.VideoID, job.Attempts)
		return
	}
	payload, _ := json.Marshal(job)
	p.redis.LPush(ctx, FrameQueue, string(payload))
}
