package ipfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/logger"
)

var (
	// ErrCantConnect 主节点与备用节点都不可用
	ErrCantConnect = errors.New("failed to connect to IPFS")
	// ErrNotFound 内容不存在
	ErrNotFound = errors.New("ipfs content not found")
)

// 节点返回 200 但内容表示取块失败
const failedBlockMarker = "Failed to get block"

// Client IPFS cat 客户端，主节点失败时回退到备用节点
type Client struct {
	primary  string
	fallback string
	timeout  time.Duration
	http     *http.Client
}

// NewClient 创建 IPFS 客户端
func NewClient(cfg config.IPFSConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Client{
		primary:  strings.TrimRight(cfg.PrimaryURL, "/"),
		fallback: strings.TrimRight(cfg.FallbackURL, "/"),
		timeout:  timeout,
		http:     &http.Client{},
	}
}

// Cat 读取内容
func (c *Client) Cat(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNotFound)
	}

	var lastErr error
	for _, base := range []string{c.primary, c.fallback} {
		if base == "" {
			continue
		}
		body, err := c.cat(ctx, base, key)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		logger.Warn("ipfs cat %s via %s failed: %v", key, base, err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrCantConnect, key, lastErr)
}

func (c *Client) cat(ctx context.Context, base, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/api/v0/cat?arg=%s", base, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case strings.Contains(string(body), failedBlockMarker):
		return nil, errors.New(failedBlockMarker)
	}
	return body, nil
}
