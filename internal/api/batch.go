package api

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// batchJob tracks the state of a running batch analysis.
type batchJob struct {
	id        string
	cancel    context.CancelFunc
	startedAt time.Time
	total     int

	mu        sync.Mutex
	processed int
}

func (j *batchJob) progress() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.processed
}

func (j *batchJob) advance() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed++
	return j.processed
}

// startBatch launches an asynchronous batch analysis. The caller must hold
// s.jobMu.
func (s *Server) startBatch(items []BatchItem) (*batchJob, error) {
	if s.activeJob != nil {
		return nil, errors.New("batch analysis already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &batchJob{
		id:        uuid.NewString(),
		cancel:    cancel,
		startedAt: time.Now().UTC(),
		total:     len(items),
	}
	s.activeJob = job
	go s.runBatch(ctx, job, items)
	return job, nil
}

// cancelBatch aborts the active job if present.
func (s *Server) cancelBatch() {
	if s.activeJob != nil {
		s.activeJob.cancel()
	}
}

func (s *Server) runBatch(ctx context.Context, job *batchJob, items []BatchItem) {
	defer func() {
		s.jobMu.Lock()
		s.activeJob = nil
		s.jobMu.Unlock()
	}()

	logrus.WithFields(logrus.Fields{
		"job":   job.id,
		"total": job.total,
	}).Info("batch analysis started")

	s.notifier.Broadcast(AnalysisEvent{
		Type:    "started",
		JobID:   job.id,
		Total:   job.total,
		Message: "batch analysis started",
	})

	workerCount := runtime.NumCPU()
	if workerCount > 4 {
		workerCount = 4
	}
	if workerCount > job.total {
		workerCount = job.total
	}

	taskCh := make(chan BatchItem)
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range taskCh {
				select {
				case <-ctx.Done():
					return
				default:
				}
				text := strings.TrimSpace(item.Text)
				if text == "" {
					continue
				}
				resp, err := s.analyzeText(ctx, text, "batch")
				if err != nil {
					logrus.WithError(err).WithField("item", item.Name).Warn("batch item failed")
					continue
				}
				processed := job.advance()
				s.notifier.Broadcast(AnalysisEvent{
					Type:      "progress",
					JobID:     job.id,
					Total:     job.total,
					Processed: processed,
					Message:   item.Name,
					Analysis:  &resp,
				})
			}
		}()
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			s.notifier.Broadcast(AnalysisEvent{
				Type:      "cancelled",
				JobID:     job.id,
				Total:     job.total,
				Processed: job.progress(),
				Message:   "batch analysis cancelled",
			})
			logrus.WithField("job", job.id).Warn("batch analysis cancelled")
			return
		case taskCh <- item:
		}
	}
	close(taskCh)
	wg.Wait()

	s.notifier.Broadcast(AnalysisEvent{
		Type:      "completed",
		JobID:     job.id,
		Total:     job.total,
		Processed: job.progress(),
		Message:   "batch analysis completed",
	})
	logrus.WithFields(logrus.Fields{
		"job":       job.id,
		"processed": job.progress(),
		"duration":  time.Since(job.startedAt),
	}).Info("batch analysis finished")
}
