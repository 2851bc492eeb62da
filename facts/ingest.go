package facts

import (
	"context"
	"sync"
)

type IngestJob struct {
	UserID    string
	MessageID string
	Text      string
}

// Ingestor runs extraction and persistence off the caller's hot path: a
// buffered queue drained by a fixed worker pool. Enqueue never blocks; jobs
// are dropped when the queue is full.
type Ingestor struct {
	s         *Store
	startOnce sync.Once
	queue     chan IngestJob
	workers   int
}

func NewIngestor(s *Store) *Ingestor {
	return &Ingestor{
		s:       s,
		queue:   make(chan IngestJob, s.Config.IngestQueueSize),
		workers: s.Config.IngestWorkers,
	}
}

func (in *Ingestor) Start() {
	in.startOnce.Do(func() {
		for i := 0; i < in.workers; i++ {
			go in.worker()
		}
	})
}

func (in *Ingestor) Enqueue(job IngestJob) {
	if job.UserID == "" || job.Text == "" {
		return
	}
	in.Start()
	select {
	case in.queue <- job:
	default:
		// drop when queue is full (non-blocking, keep main path low-latency)
		in.s.log.Debug("ingest queue full, dropping message", "user", job.UserID, "message", job.MessageID)
	}
}

func (in *Ingestor) worker() {
	for job := range in.queue {
		if _, err := in.s.ProcessMessage(context.Background(), job.UserID, job.MessageID, job.Text); err != nil {
			in.s.log.Debug("ingest failed", "user", job.UserID, "message", job.MessageID, "err", err)
		}
	}
}
