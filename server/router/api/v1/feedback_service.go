package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pkg/errors"

	"github.com/openseek/openseek/store"
)

type feedbackRequest struct {
	TraceID string `json:"traceId"`
	// MessageID optionally pins the feedback to a persisted message UID.
	MessageID string `json:"messageId"`
	// Score is 1 for positive, -1 for negative.
	Score   int32  `json:"score"`
	Comment string `json:"comment"`
}

func (s *APIV1Service) registerFeedbackRoutes(e *echo.Echo) {
	e.POST("/api/feedback", s.submitFeedback)
}

// submitFeedback forwards a user rating to the tracing collector and records
// it on the rated message. The collector forward is the primary effect; the
// local update is best effort.
func (s *APIV1Service) submitFeedback(c *echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.TraceID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "traceId required")
	}
	if req.Score != 1 && req.Score != -1 {
		return echo.NewHTTPError(http.StatusBadRequest, "score must be 1 or -1")
	}

	if !s.Profile.Tracing.Enabled {
		return c.JSON(http.StatusOK, map[string]string{"message": "tracking not enabled"})
	}

	ctx := c.Request().Context()
	if err := s.forwardScore(ctx, req); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	if req.MessageID != "" {
		if err := s.Store.UpdateMessageFeedback(ctx, &store.UpdateMessageFeedback{
			MessageUID: req.MessageID,
			Score:      req.Score,
			Comment:    req.Comment,
		}); err != nil {
			slog.Warn("failed to record feedback locally", "message", req.MessageID, "err", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "ok"})
}

// forwardScore posts the rating to the collector's public scores API.
func (s *APIV1Service) forwardScore(ctx context.Context, req feedbackRequest) error {
	body, err := json.Marshal(map[string]any{
		"traceId": req.TraceID,
		"name":    "user-feedback",
		"value":   req.Score,
		"comment": req.Comment,
	})
	if err != nil {
		return errors.Wrap(err, "marshal score")
	}

	endpoint := strings.TrimRight(s.Profile.Tracing.Endpoint, "/") + "/api/public/scores"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build score request")
	}
	httpReq.SetBasicAuth(s.Profile.Tracing.PublicKey, s.Profile.Tracing.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		return errors.Wrap(err, "forward score")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("collector rejected score: %s", resp.Status)
	}
	return nil
}
