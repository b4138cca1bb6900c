package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"jobscout/internal/checkpoint"
	"jobscout/internal/config"
	"jobscout/internal/mailbox"
	"jobscout/internal/metrics"
	"jobscout/internal/models"
	"jobscout/internal/parser"
	"jobscout/internal/repository"
)

// Extractor turns normalized email text into job records
type Extractor interface {
	Extract(ctx context.Context, text string) ([]models.JobRecord, error)
}

// Sink appends one job record to the durable results ledger
type Sink interface {
	Append(record models.JobRecord) error
}

// Processor walks the candidate messages of one batch run. Per message:
// fetch with bounded retry, normalize, extract, persist rows, checkpoint.
// A message is checkpointed only after all of its rows are durably
// written; a message whose fetch or processing fails is left out of the
// checkpoint set so the next run retries it.
type Processor struct {
	cfg         *config.Config
	mailbox     mailbox.Mailbox
	extractor   Extractor
	checkpoints *checkpoint.Store
	sink        Sink
	repo        *repository.Repository // nil when no database is configured
	metrics     *metrics.Metrics

	// swappable for tests
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a batch processor
func New(cfg *config.Config, mb mailbox.Mailbox, ex Extractor, cp *checkpoint.Store, sk Sink, repo *repository.Repository, m *metrics.Metrics) *Processor {
	return &Processor{
		cfg:         cfg,
		mailbox:     mb,
		extractor:   ex,
		checkpoints: cp,
		sink:        sk,
		repo:        repo,
		metrics:     m,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// Run executes one full batch: discovery, filtering, per-message
// processing, pacing and periodic reconnects. It returns an error only
// for conditions fatal to the run (search or reconnect failure); a
// failing message is logged and left for the next run.
func (p *Processor) Run(ctx context.Context) error {
	cutoff := p.now().AddDate(0, 0, -p.cfg.Search.LookbackDays)

	logrus.Infof("Searching for messages with subject %q since %s", p.cfg.Search.SubjectToken, cutoff.Format("02-Jan-2006"))
	ids, err := p.mailbox.Search(p.cfg.Search.SubjectToken, cutoff)
	if err != nil {
		return fmt.Errorf("mailbox search failed: %w", err)
	}

	seen, err := p.checkpoints.Load()
	if err != nil {
		return fmt.Errorf("failed to load checkpoints: %w", err)
	}

	todo := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			todo = append(todo, id)
		}
	}

	logrus.Infof("Messages found: %d, already processed: %d, remaining: %d", len(ids), len(seen), len(todo))

	for i, id := range todo {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		logrus.Infof("Processing [%d/%d] message %s", i+1, len(todo), id)

		start := p.now()
		if err := p.processMessage(ctx, id); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Not checkpointed: the next run will retry this message.
			logrus.Errorf("Message %s failed, leaving it for the next run: %v", id, err)
			p.metrics.ItemsFailed.Inc()
			p.auditLog(id, "error", 0, err.Error())
		}
		p.metrics.ProcessingTime.Observe(p.now().Sub(start).Seconds())

		// Forced reconnect keeps long runs from tripping server-side
		// connection timeouts. Failure here is fatal: no further
		// messages can be fetched.
		if (i+1)%p.cfg.Pipeline.ReconnectEvery == 0 && i+1 < len(todo) {
			logrus.Info("Reconnecting to mailbox")
			if err := p.mailbox.Reconnect(); err != nil {
				return fmt.Errorf("mailbox reconnect failed: %w", err)
			}
			p.metrics.Reconnects.Inc()
		}

		p.sleep(p.cfg.Pipeline.InterItemSleep)
	}

	logrus.Info("Batch run complete")
	return nil
}

// processMessage handles one message end to end
func (p *Processor) processMessage(ctx context.Context, id string) error {
	msg, err := p.fetchWithRetry(ctx, id)
	if err != nil {
		return err
	}

	body := parser.Normalize(msg.Body)
	if len(body) < p.cfg.Pipeline.MinContentLength {
		logrus.Infof("Message %s has insufficient content (%d chars), skipping extraction", id, len(body))
		if err := p.checkpoints.Mark(id); err != nil {
			return fmt.Errorf("failed to checkpoint message %s: %w", id, err)
		}
		p.metrics.ItemsSkipped.Inc()
		p.auditLog(id, "skipped", 0, "")
		return nil
	}

	jobs, err := p.extractor.Extract(ctx, body)
	if err != nil {
		return fmt.Errorf("extraction failed for message %s: %w", id, err)
	}

	for _, job := range jobs {
		job.EmailDate = msg.Date
		job.SourceSubject = msg.Subject
		if err := p.sink.Append(job); err != nil {
			return fmt.Errorf("failed to persist job from message %s: %w", id, err)
		}
		p.metrics.JobsExtracted.Inc()
	}

	if len(jobs) > 0 {
		logrus.Infof("Message %s yielded %d job(s)", id, len(jobs))
		p.auditLog(id, "extracted", len(jobs), "")
	} else {
		logrus.Infof("Message %s yielded no matching jobs", id)
		p.auditLog(id, "empty", 0, "")
	}

	if err := p.checkpoints.Mark(id); err != nil {
		return fmt.Errorf("failed to checkpoint message %s: %w", id, err)
	}
	p.metrics.ItemsProcessed.Inc()

	return nil
}

// fetchWithRetry fetches a message with a bounded number of attempts and
// a fixed delay, re-raising the last error after exhaustion
func (p *Processor) fetchWithRetry(ctx context.Context, id string) (models.EmailMessage, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.Pipeline.FetchRetries; attempt++ {
		select {
		case <-ctx.Done():
			return models.EmailMessage{}, ctx.Err()
		default:
		}

		msg, err := p.mailbox.Fetch(id)
		if err == nil {
			return msg, nil
		}
		lastErr = err
		logrus.Warnf("Fetch of message %s failed (attempt %d/%d): %v", id, attempt, p.cfg.Pipeline.FetchRetries, err)
		if attempt < p.cfg.Pipeline.FetchRetries {
			p.sleep(p.cfg.Pipeline.FetchRetryDelay)
		}
	}
	return models.EmailMessage{}, fmt.Errorf("failed to fetch message %s after %d attempts: %w", id, p.cfg.Pipeline.FetchRetries, lastErr)
}

// auditLog writes an audit entry when a database is configured
func (p *Processor) auditLog(id, status string, jobsFound int, errorMsg string) {
	if p.repo == nil {
		return
	}
	if err := p.repo.LogExtraction(id, status, jobsFound, errorMsg); err != nil {
		logrus.Warnf("Failed to write audit log for message %s: %v", id, err)
	}
}
