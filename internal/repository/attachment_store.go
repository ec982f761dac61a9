package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/middleware/requestid"
)

const internalTokenHeader = "X-Internal-Service-Token"

// AttachmentStore talks to the attachments microservice.
type AttachmentStore struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewAttachmentStore builds the client; a zero timeout defaults to 30s.
func NewAttachmentStore(baseURL, token string, timeout time.Duration, client *http.Client) *AttachmentStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &AttachmentStore{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

type deleteAttachmentsRequest struct {
	IncidentID string `json:"intercorrencia_uuid"`
}

type deleteAttachmentsResponse struct {
	Total  int    `json:"total_anexos"`
	Failed int    `json:"anexos_com_erro"`
	Detail string `json:"detail"`
}

// DeleteAll removes every attachment of a report and returns how many were
// deleted. Partial failures reported by the service are errors.
func (s *AttachmentStore) DeleteAll(ctx context.Context, incidentID string) (int, error) {
	body, err := json.Marshal(deleteAttachmentsRequest{IncidentID: incidentID})
	if err != nil {
		return 0, fmt.Errorf("encode attachments request: %w", err)
	}

	endpoint := s.baseURL + "/anexos/deletar-por-intercorrencia/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build attachments request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(internalTokenHeader, s.token)
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("delete attachments of %s: %w", incidentID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read attachments response: %w", err)
	}

	var payload deleteAttachmentsResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := payload.Detail
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return 0, fmt.Errorf("delete attachments of %s: status %d: %s", incidentID, resp.StatusCode, detail)
	}
	if payload.Failed > 0 {
		return payload.Total, fmt.Errorf("delete attachments of %s: %d attachment(s) failed", incidentID, payload.Failed)
	}
	return payload.Total, nil
}
