package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/notify/presence"
)

const presencePrefix = "presence:"

// leaveScript decrements a counter and removes it once it reaches zero.
var leaveScript = goredis.NewScript(`
local n = redis.call('DECR', KEYS[1])
if n <= 0 then
	redis.call('DEL', KEYS[1])
end
return n
`)

// Presence is a presence.Tracker shared by every replica through Redis
// counters keyed presence:<recipient>.
type Presence struct {
	client *Client
	ttl    time.Duration
}

var _ presence.Tracker = (*Presence)(nil)

// NewPresence creates a Presence on client.
func NewPresence(client *Client) *Presence {
	return &Presence{client: client, ttl: duration(client.cfg.PresenceTTL)}
}

func presenceKey(recipientID string) string {
	return presencePrefix + recipientID
}

// Join increments the recipient's counter and refreshes its TTL.
func (p *Presence) Join(ctx context.Context, recipientID string) error {
	key := presenceKey(recipientID)
	_, err := p.client.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, key)
		if p.ttl > 0 {
			pipe.Expire(ctx, key, p.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("presence join %s: %w", recipientID, err)
	}
	return nil
}

// Leave decrements the recipient's counter.
func (p *Presence) Leave(ctx context.Context, recipientID string) error {
	if err := leaveScript.Run(ctx, p.client.rdb, []string{presenceKey(recipientID)}).Err(); err != nil {
		return fmt.Errorf("presence leave %s: %w", recipientID, err)
	}
	return nil
}

// Online reports whether any replica holds a session for the recipient.
func (p *Presence) Online(ctx context.Context, recipientID string) (bool, error) {
	n, err := p.client.rdb.Get(ctx, presenceKey(recipientID)).Int64()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence lookup %s: %w", recipientID, err)
	}
	return n > 0, nil
}
