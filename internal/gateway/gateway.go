package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/insurechat/bridge/config"
	"github.com/insurechat/bridge/internal/errs"
	"github.com/insurechat/bridge/internal/models"
	"github.com/insurechat/bridge/pkg/logger"
)

// Answer is the parsed reply from the answer service: the generated
// text plus the raw page references it grounded the answer on.
type Answer struct {
	Text      string
	Citations []models.RawCitation
}

// Client calls the external answer-generation service. Retries cover
// transport failures and 5xx only; 4xx and undecodable bodies fail
// immediately since retrying could duplicate upstream side effects.
type Client struct {
	baseURL     string
	bearerToken string
	maxRetries  int
	httpClient  *http.Client
	logger      logger.Logger
}

func NewClient(cfg *config.UpstreamConfig, log logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.URL, "/"),
		bearerToken: cfg.BearerToken,
		maxRetries:  cfg.MaxRetries,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log,
	}
}

type askRequest struct {
	ConversationID string           `json:"conversation_id"`
	Question       string           `json:"question"`
	Pages          []askRequestPage `json:"pages"`
}

type askRequestPage struct {
	PageKey    string `json:"page_key"`
	PDFName    string `json:"pdf_name"`
	PageNumber int    `json:"page_number"`
}

// upstreamCitation accepts both citation spellings the service emits.
type upstreamCitation struct {
	PageKey    string  `json:"page_key"`
	PDFName    string  `json:"pdf_name"`
	PageNumber flexInt `json:"page_number"`
}

type askResponse struct {
	AI        string             `json:"ai"`
	Citations []upstreamCitation `json:"citations"`

	// Legacy shape from older service versions, accepted as input only.
	PagesUsed []string           `json:"pages_used"`
	PageInfo  []upstreamCitation `json:"page_info"`
}

// flexInt tolerates page numbers encoded as JSON numbers or strings;
// older service versions forward them verbatim from object metadata.
type flexInt int

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid page number %q", s)
	}
	*n = flexInt(v)
	return nil
}

// Ask sends the question together with the conversation's full page
// index, so the service can ground its answer against any document
// uploaded earlier in the conversation.
func (c *Client) Ask(ctx context.Context, conversationID, question string, pages []models.Page) (*Answer, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: answer service URL not configured", errs.ErrUpstreamUnavailable)
	}

	payload := askRequest{
		ConversationID: conversationID,
		Question:       question,
		Pages:          make([]askRequestPage, 0, len(pages)),
	}
	for _, p := range pages {
		payload.Pages = append(payload.Pages, askRequestPage{
			PageKey:    string(p.Key),
			PDFName:    p.PDFName,
			PageNumber: p.Number,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying answer service call",
				logger.Int("attempt", attempt),
				logger.Error(lastErr),
			)
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return nil, c.classifyTransport(ctx.Err())
			}
		}

		answer, retryable, err := c.doRequest(ctx, body)
		if err == nil {
			return answer, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// doRequest performs one attempt. The second return reports whether the
// failure is safe to retry.
func (c *Client) doRequest(ctx context.Context, body []byte) (*Answer, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest-and-answer", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		classified := c.classifyTransport(err)
		// Timeouts are not retried: the service may still be working on
		// the original request.
		return nil, !errors.Is(classified, errs.ErrUpstreamTimeout), classified
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("%w: reading body: %v", errs.ErrMalformedUpstreamResponse, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: status %d: %s", errs.ErrUpstreamUnavailable, resp.StatusCode, truncate(respBody))
	case resp.StatusCode >= 400:
		return nil, false, fmt.Errorf("%w: status %d: %s", errs.ErrUpstreamBadRequest, resp.StatusCode, truncate(respBody))
	}

	var parsed askResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, false, fmt.Errorf("%w: %v", errs.ErrMalformedUpstreamResponse, err)
	}

	return &Answer{
		Text:      parsed.AI,
		Citations: rawCitations(&parsed),
	}, false, nil
}

func (c *Client) classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", errs.ErrUpstreamTimeout, err)
	}
	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return fmt.Errorf("%w: %v", errs.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", errs.ErrUpstreamUnavailable, err)
}

// rawCitations converts the response into the tagged citation variant,
// preferring the modern citations field over the legacy parallel shape.
func rawCitations(resp *askResponse) []models.RawCitation {
	var raws []models.RawCitation

	source := resp.Citations
	if len(source) == 0 {
		source = resp.PageInfo
	}

	for _, c := range source {
		switch {
		case c.PageKey != "":
			raws = append(raws, models.KeyRef{Key: models.PageKey(c.PageKey)})
		case c.PDFName != "" && c.PageNumber > 0:
			raws = append(raws, models.NameRef{PDFName: c.PDFName, Page: int(c.PageNumber)})
		}
	}

	if len(raws) == 0 {
		for _, key := range resp.PagesUsed {
			if key != "" {
				raws = append(raws, models.KeyRef{Key: models.PageKey(key)})
			}
		}
	}

	return raws
}

func truncate(body []byte) string {
	const max = 512
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
