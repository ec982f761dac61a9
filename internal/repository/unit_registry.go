package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/pkg/middleware/requestid"
)

// ErrUnitNotFound is returned when the registry answers 404.
var ErrUnitNotFound = errors.New("unit not found")

// UnitRegistry reads schools and districts from the units microservice.
type UnitRegistry struct {
	baseURL string
	client  *http.Client
}

// NewUnitRegistry builds a registry client; a zero timeout defaults to 3s.
func NewUnitRegistry(baseURL string, timeout time.Duration, client *http.Client) *UnitRegistry {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &UnitRegistry{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type unitPayload struct {
	Code         string `json:"codigo_eol"`
	Name         string `json:"nome"`
	DistrictCode string `json:"dre_codigo_eol"`
	District     *struct {
		Code string `json:"codigo_eol"`
	} `json:"dre"`
}

// Get fetches a unit by its EOL code. Transport failures and non-2xx answers
// other than 404 are returned as plain errors for the caller to classify.
func (r *UnitRegistry) Get(ctx context.Context, code string) (*models.Unit, error) {
	endpoint := fmt.Sprintf("%s/%s/", r.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build unit request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query unit %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUnitNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("query unit %s: unexpected status %d", code, resp.StatusCode)
	}

	var payload unitPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode unit %s: %w", code, err)
	}

	unit := &models.Unit{Code: payload.Code, Name: payload.Name, DistrictCode: payload.DistrictCode}
	if unit.DistrictCode == "" && payload.District != nil {
		unit.DistrictCode = payload.District.Code
	}
	return unit, nil
}
