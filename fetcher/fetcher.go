package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"unibook-bot/types"

	"go.uber.org/zap"
)

const actionCourseDetail = "dettaglio_corso"

// StatusError reports a non-2xx response from the booking site.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// Client performs the authenticated form submissions against the booking
// page. Every call is a single attempt; retrying is the scheduler's job,
// one tick at a time.
type Client struct {
	http    *http.Client
	pageURL string
	userID  string
	log     *zap.Logger
}

func New(pageURL, userID string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		pageURL: pageURL,
		userID:  userID,
		log:     log,
	}
}

// FetchListing retrieves the listing page for one course.
func (c *Client) FetchListing(ctx context.Context, courseID int) (string, error) {
	return c.postForm(ctx, "fetch listing", map[string]string{
		"userid":   c.userID,
		"IdModulo": strconv.Itoa(courseID),
		"action":   actionCourseDetail,
	})
}

// SubmitBooking submits one booking form. A 2xx response counts as success:
// the site gives no structured confirmation beyond the status code, so this
// is deliberately a weak guarantee.
func (c *Client) SubmitBooking(ctx context.Context, req *types.BookingRequest) error {
	_, err := c.postForm(ctx, "submit booking", map[string]string{
		"userid":         c.userID,
		"IdModulo":       req.ModuleID,
		"dateP":          req.DateP,
		"IdOrario":       req.ScheduleID,
		"numberP":        req.SlotNumber,
		"IdPrenotazione": req.BookingID,
		"action":         req.Action,
		"rand":           req.Nonce,
	})
	return err
}

func (c *Client) postForm(ctx context.Context, op string, fields map[string]string) (string, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return "", fmt.Errorf("%s: build form: %w", op, err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("%s: build form: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pageURL, &buf)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	c.log.Debug("booking site response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	return string(body), nil
}
