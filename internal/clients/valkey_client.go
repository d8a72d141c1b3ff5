package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spacesedan/feedbackflow/config"
	"github.com/spacesedan/feedbackflow/internal/models"
	"github.com/valkey-io/valkey-go"
)

const (
	VALKEY_RETRIES       = 3
	VALKEY_PROCESSED_TTL = 86400 // seconds

	VALKEY_FACEBOOK_KEY = "feedbackflow:processed:facebook"
)

type ValkeyClient struct {
	Client valkey.Client
	opts   valkey.ClientOption
	mu     sync.Mutex
}

func NewValkeyClient(cfg config.ValkeyConfig) (*ValkeyClient, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("[ValkeyClient] no address configured")
	}

	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: false}
	}

	client, err := connectValkey(opts)
	if err != nil {
		return nil, err
	}
	return &ValkeyClient{Client: client, opts: opts}, nil
}

func connectValkey(opts valkey.ClientOption) (valkey.Client, error) {
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("[ValkeyClient] failed to create Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("[ValkeyClient] failed to ping Valkey: %w", err)
	}

	slog.Info("[ValkeyClient] Successfully connected to valkey")
	return client, nil
}

func (vc *ValkeyClient) client() valkey.Client {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.Client
}

func (vc *ValkeyClient) recreateClient() {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	slog.Warn("[ValkeyClient] Attempting to recreate Valkey client...")
	client, err := connectValkey(vc.opts)
	if err != nil {
		slog.Error("[ValkeyClient] Recreate failed",
			slog.String("error", err.Error()))
		return
	}
	vc.Client.Close()
	vc.Client = client
}

func (vc *ValkeyClient) Close() {
	vc.client().Close()
}

// Get returns the raw value at key; found is false on a miss.
func (vc *ValkeyClient) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Get().Key(key).Build()
	}, VALKEY_RETRIES)

	raw, err := res.AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (vc *ValkeyClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		if ttl > 0 {
			return c.B().Set().Key(key).Value(valkey.BinaryString(value)).Ex(ttl).Build()
		}
		return c.B().Set().Key(key).Value(valkey.BinaryString(value)).Build()
	}, VALKEY_RETRIES)
	return res.Error()
}

// MarkProcessed records key in the per-source processed set and refreshes
// the set's expiry.
func (vc *ValkeyClient) MarkProcessed(ctx context.Context, source models.FeedbackSource, key string) error {
	setKey, err := keyFromSource(source)
	if err != nil {
		return err
	}

	responses := vc.DoMultiWithRetry(ctx, func(c valkey.Client) valkey.Commands {
		return valkey.Commands{
			c.B().Sadd().Key(setKey).Member(key).Build(),
			c.B().Expire().Key(setKey).Seconds(VALKEY_PROCESSED_TTL).Build(),
		}
	}, VALKEY_RETRIES)
	for _, res := range responses {
		if err := res.Error(); err != nil {
			return err
		}
	}
	return nil
}

// IsProcessed reports false on any error so a flaky cache never drops posts.
func (vc *ValkeyClient) IsProcessed(ctx context.Context, source models.FeedbackSource, key string) bool {
	setKey, err := keyFromSource(source)
	if err != nil {
		return false
	}

	res := vc.DoWithRetry(ctx, func(c valkey.Client) valkey.Completed {
		return c.B().Sismember().Key(setKey).Member(key).Build()
	}, VALKEY_RETRIES)

	ok, err := res.AsBool()
	if err != nil {
		return false
	}
	return ok
}

func keyFromSource(source models.FeedbackSource) (string, error) {
	switch source {
	case models.SourceFacebook:
		return VALKEY_FACEBOOK_KEY, nil
	default:
		return "", fmt.Errorf("[ValkeyClient] no processed set for source %q", source)
	}
}

// DoWithRetry builds a fresh command per attempt since completed commands are
// recycled once executed.
func (vc *ValkeyClient) DoWithRetry(ctx context.Context, build func(valkey.Client) valkey.Completed, retries int) valkey.ValkeyResult {
	var result valkey.ValkeyResult
	for i := 0; i < max(retries, 1); i++ {
		c := vc.client()
		result = c.Do(ctx, build(c))
		err := result.Error()
		if err == nil || valkey.IsValkeyNil(err) {
			break
		}

		slog.Warn("[ValkeyClient] Do failed",
			slog.Int("attempt", i+1),
			slog.String("error", err.Error()))
		if isConnectionError(err) {
			vc.recreateClient()
		}

		select {
		case <-ctx.Done():
			return result
		case <-time.After(250 * time.Millisecond):
		}
	}

	return result
}

func (vc *ValkeyClient) DoMultiWithRetry(ctx context.Context, build func(valkey.Client) valkey.Commands, retries int) []valkey.ValkeyResult {
	var results []valkey.ValkeyResult
	for i := 0; i < max(retries, 1); i++ {
		c := vc.client()
		results = c.DoMulti(ctx, build(c)...)

		var failed error
		for _, res := range results {
			if err := res.Error(); err != nil && !valkey.IsValkeyNil(err) {
				failed = err
				break
			}
		}
		if failed == nil {
			break
		}

		slog.Warn("[ValkeyClient] DoMulti failed",
			slog.Int("attempt", i+1),
			slog.String("error", failed.Error()))
		if isConnectionError(failed) {
			vc.recreateClient()
		}

		select {
		case <-ctx.Done():
			return results
		case <-time.After(250 * time.Millisecond):
		}
	}
	return results
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "i/o timeout")
}
