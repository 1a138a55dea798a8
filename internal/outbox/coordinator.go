// Package outbox drives the asynchronous network operation behind each
// draft. Completions interleave arbitrarily; the store's mutation-by-id
// design is what makes completion order irrelevant.
package outbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/essaydesk/chat-engine/internal/api"
	"github.com/essaydesk/chat-engine/internal/domain"
	"github.com/essaydesk/chat-engine/internal/logger"
)

// API is the slice of the REST client the coordinator needs.
type API interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (*domain.Message, error)
	SendFile(ctx context.Context, req api.SendFileRequest) (*domain.Message, error)
}

// Outcome reports one draft's terminal result, exactly once per dispatch.
type Outcome struct {
	Draft     *domain.Draft
	Canonical *domain.Message
	Err       error
}

type Coordinator struct {
	api    API
	onDone func(Outcome)
	log    zerolog.Logger

	mu     sync.Mutex
	failed map[string]*domain.Draft
	wg     sync.WaitGroup
}

// NewCoordinator wires outcomes to onDone. The callback runs on the
// dispatch goroutine and must be safe to call concurrently.
func NewCoordinator(apiClient API, onDone func(Outcome)) *Coordinator {
	return &Coordinator{
		api:    apiClient,
		onDone: onDone,
		log:    logger.Module("outbox"),
		failed: make(map[string]*domain.Draft),
	}
}

// Dispatch starts the network operation for one draft. There is no
// automatic retry: a failure is reported and the draft retained for a
// user-initiated Retry.
func (c *Coordinator) Dispatch(ctx context.Context, draft *domain.Draft) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.send(ctx, draft)
	}()
}

// Retry re-dispatches a previously failed draft. The original payload was
// retained, so the resubmission carries the same content and attachment.
func (c *Coordinator) Retry(ctx context.Context, localID string) error {
	c.mu.Lock()
	draft, ok := c.failed[localID]
	if ok {
		delete(c.failed, localID)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("outbox: no failed draft with id %s", localID)
	}
	c.Dispatch(ctx, draft)
	return nil
}

// Wait blocks until all in-flight dispatches have reported.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

func (c *Coordinator) send(ctx context.Context, draft *domain.Draft) {
	var (
		canonical *domain.Message
		err       error
	)

	if draft.File != nil {
		canonical, err = c.api.SendFile(ctx, api.SendFileRequest{
			ChatID:    draft.ChatID,
			Content:   draft.Content,
			ReplyToID: draft.ReplyToID,
			File:      *draft.File,
		})
	} else {
		canonical, err = c.api.SendMessage(ctx, api.SendMessageRequest{
			ChatID:    draft.ChatID,
			Content:   draft.Content,
			ReplyToID: draft.ReplyToID,
		})
	}

	if err != nil {
		c.log.Warn().Err(err).Str("chat", draft.ChatID).Str("local", draft.LocalID).Msg("send failed")
		c.mu.Lock()
		c.failed[draft.LocalID] = draft
		c.mu.Unlock()
		c.onDone(Outcome{Draft: draft, Err: err})
		return
	}

	c.onDone(Outcome{Draft: draft, Canonical: canonical})
}
