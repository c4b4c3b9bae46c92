package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaerp/receiving/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// ReplyKeyPrefix prefixes the per-call reply list
const ReplyKeyPrefix = "rpc:reply:"

// DefaultCallTimeout applies when the caller's context has no deadline
const DefaultCallTimeout = 5 * time.Second

// ErrTimeout is returned when no reply arrives before the deadline
var ErrTimeout = errors.New("rpc call timed out")

// Client sends requests to other services' queues and waits for replies
type Client struct {
	queue Queue
	now   func() time.Time
}

// NewClient creates an RPC client
func NewClient(queue Queue) *Client {
	return &Client{queue: queue, now: time.Now}
}

// Call sends payload to queue under pattern and decodes the reply into out.
// A remote DomainError is returned as *shared.DomainError with its code intact.
// Transport failures and timeouts are returned as plain errors; deciding what
// they mean is the caller's job.
func (c *Client) Call(ctx context.Context, queue, pattern string, payload, out any) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = c.now().Add(DefaultCallTimeout)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", pattern, err)
	}

	id := uuid.NewString()
	req := &Request{
		ID:       id,
		Pattern:  pattern,
		ReplyTo:  ReplyKeyPrefix + id,
		Deadline: deadline,
		Data:     data,
	}
	raw, err := EncodeRequest(req)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", pattern, err)
	}

	if err := c.queue.RPush(ctx, queue, raw).Err(); err != nil {
		return fmt.Errorf("send %s to %s: %w", pattern, queue, err)
	}

	wait := deadline.Sub(c.now())
	if wait <= 0 {
		return fmt.Errorf("%s: %w", pattern, ErrTimeout)
	}

	res, err := c.queue.BLPop(ctx, wait, req.ReplyTo).Result()
	if err != nil {
		// a reply may still land after we give up; make it go away
		_ = c.queue.Del(context.WithoutCancel(ctx), req.ReplyTo).Err()
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", pattern, ErrTimeout)
		}
		return fmt.Errorf("await %s reply: %w", pattern, err)
	}
	if len(res) != 2 {
		return fmt.Errorf("await %s reply: unexpected BLPOP result", pattern)
	}

	resp, err := DecodeResponse([]byte(res[1]))
	if err != nil {
		return fmt.Errorf("decode %s reply: %w", pattern, err)
	}
	if resp.ID != id {
		return fmt.Errorf("%s reply id %q does not match request %q", pattern, resp.ID, id)
	}
	if resp.Error != nil {
		return resp.Error.DomainError()
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s result: %w", pattern, err)
	}
	return nil
}

// IsRemoteError reports whether err came back from the remote handler
// rather than from the transport
func IsRemoteError(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de)
}
