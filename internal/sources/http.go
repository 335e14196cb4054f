package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/metrics"
	"github.com/engclin/melwatch/internal/ratelimit"
)

const maxResponseSize = 32 << 20

// HTTPConfig configures an HTTPSource.
type HTTPConfig struct {
	BaseURL       string
	Token         string
	EquipmentPath string
	WorkOrderPath string
	Timeout       time.Duration // bounds a whole fetch, pages included
	MaxPages      int
	PageParam     string
	// Retries is how many times a request failing with a network error or a
	// 5xx status is retried. Zero disables retries.
	Retries int
}

// HTTPSource reads both feeds from a JSON REST API.
type HTTPSource struct {
	cfg        HTTPConfig
	client     *resty.Client
	limiter    *ratelimit.Limiter
	normalizer *Normalizer
	logger     *zap.Logger
}

// NewHTTPSource creates an HTTP-backed source. limiter may be nil.
func NewHTTPSource(cfg HTTPConfig, normalizer *Normalizer, limiter *ratelimit.Limiter, logger *zap.Logger) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetResponseBodyLimit(maxResponseSize).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || resp.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return &HTTPSource{
		cfg:        cfg,
		client:     client,
		limiter:    limiter,
		normalizer: normalizer,
		logger:     logger,
	}
}

// FetchEquipment implements EquipmentSource.
func (s *HTTPSource) FetchEquipment(ctx context.Context) ([]mel.Equipment, error) {
	start := time.Now()
	raw, err := s.fetchAll(ctx, s.cfg.EquipmentPath)
	if err != nil {
		metrics.ObserveSourceFetch(SourceEquipment, metrics.ResultError, time.Since(start), 0)
		return nil, &mel.SourceError{Source: SourceEquipment, Err: err}
	}
	equipment := s.normalizer.Equipment(raw)
	metrics.ObserveSourceFetch(SourceEquipment, metrics.ResultSuccess, time.Since(start), len(equipment))
	return equipment, nil
}

// FetchWorkOrders implements WorkOrderSource.
func (s *HTTPSource) FetchWorkOrders(ctx context.Context) ([]mel.WorkOrder, error) {
	start := time.Now()
	raw, err := s.fetchAll(ctx, s.cfg.WorkOrderPath)
	if err != nil {
		metrics.ObserveSourceFetch(SourceWorkOrders, metrics.ResultError, time.Since(start), 0)
		return nil, &mel.SourceError{Source: SourceWorkOrders, Err: err}
	}
	orders := s.normalizer.WorkOrders(raw)
	metrics.ObserveSourceFetch(SourceWorkOrders, metrics.ResultSuccess, time.Since(start), len(orders))
	return orders, nil
}

// fetchAll follows page numbers while the payload advertises more pages.
func (s *HTTPSource) fetchAll(ctx context.Context, path string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var all []map[string]any
	for page := 1; page <= s.cfg.MaxPages; page++ {
		body, err := s.get(ctx, path, page)
		if err != nil {
			return nil, err
		}
		records, totalPages, err := DecodeRecords(body)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
		if totalPages <= page || len(records) == 0 {
			return all, nil
		}
	}
	s.logger.Warn("source pagination truncated", zap.String("path", path), zap.Int("max_pages", s.cfg.MaxPages))
	return all, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, page int) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req := s.client.R().SetContext(ctx)
	if page > 1 {
		req.SetQueryParam(s.cfg.PageParam, strconv.Itoa(page))
	}

	path = "/" + strings.TrimPrefix(path, "/")
	s.logger.Debug("source request", zap.String("path", path), zap.Int("page", page))
	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		snippet := resp.Body()
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode(), strings.TrimSpace(string(snippet)))
	}
	return resp.Body(), nil
}
