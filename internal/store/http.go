package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/altwrite/internal/model"
	"github.com/ppiankov/altwrite/internal/util"
)

// Routes of the persistence API, relative to the base URL
const (
	routeFigure                 = "/figure/%d"
	routeDescription            = "/description"
	routeDescriptionsByFigure   = "/description/figure/%d"
	routeSuggestions            = "/suggestions"
	routeSuggestionsByDesc      = "/suggestions/description/%d"
	routeGeneratedDescription   = "/generated_description"
	routeGeneratedByFigure      = "/generated_description/figure/%d"
	routeEvent                  = "/event"
	routeSettingsByID           = "/settings/%d"
	routeSettingsByUser         = "/settings/user/%d"
	defaultStoreTimeout         = 15 * time.Second
	maxErrorBodyInMessageLength = 200
)

// HTTPStore implements Store against the JSON persistence API
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// HTTPOption configures an HTTPStore
type HTTPOption func(*HTTPStore)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPStore) { s.httpClient = c }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPStore) { s.logger = l }
}

// NewHTTPStore creates a store client for the API at cfg.BaseURL
func NewHTTPStore(cfg model.StoreConfig, opts ...HTTPOption) (*HTTPStore, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("store base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}

	s := &HTTPStore{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: util.NewProxyFunc("", "", "")},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Figure fetches one figure
func (s *HTTPStore) Figure(ctx context.Context, id int64) (*model.Figure, error) {
	var fig model.Figure
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf(routeFigure, id), nil, &fig); err != nil {
		return nil, fmt.Errorf("get figure %d: %w", id, err)
	}
	return &fig, nil
}

// DescriptionByFigure fetches the description of a figure
func (s *HTTPStore) DescriptionByFigure(ctx context.Context, figureID int64) (*model.Description, error) {
	var list []model.Description
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf(routeDescriptionsByFigure, figureID), nil, &list); err != nil {
		return nil, fmt.Errorf("get description for figure %d: %w", figureID, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("description for figure %d: %w", figureID, ErrNotFound)
	}
	return &list[0], nil
}

// UpsertDescription creates or updates a description
func (s *HTTPStore) UpsertDescription(ctx context.Context, d model.Description) (*model.Description, error) {
	var out model.Description
	if err := s.do(ctx, http.MethodPost, routeDescription, d, &out); err != nil {
		return nil, fmt.Errorf("upsert description: %w", err)
	}
	return &out, nil
}

// UpsertSuggestion stores a suggestion
func (s *HTTPStore) UpsertSuggestion(ctx context.Context, sg model.Suggestion) (*model.Suggestion, error) {
	var out model.Suggestion
	if err := s.do(ctx, http.MethodPost, routeSuggestions, sg, &out); err != nil {
		return nil, fmt.Errorf("upsert suggestion: %w", err)
	}
	return &out, nil
}

// SuggestionsByDescription lists the suggestions of a description
func (s *HTTPStore) SuggestionsByDescription(ctx context.Context, descriptionID int64) ([]model.Suggestion, error) {
	var list []model.Suggestion
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf(routeSuggestionsByDesc, descriptionID), nil, &list); err != nil {
		return nil, fmt.Errorf("list suggestions for description %d: %w", descriptionID, err)
	}
	return list, nil
}

// UpsertGeneratedDescription stores a draft option
func (s *HTTPStore) UpsertGeneratedDescription(ctx context.Context, g model.GeneratedDescription) (*model.GeneratedDescription, error) {
	var out model.GeneratedDescription
	if err := s.do(ctx, http.MethodPost, routeGeneratedDescription, g, &out); err != nil {
		return nil, fmt.Errorf("upsert generated description: %w", err)
	}
	return &out, nil
}

// GeneratedDescriptionsByFigure lists the draft options of a figure
func (s *HTTPStore) GeneratedDescriptionsByFigure(ctx context.Context, figureID int64) ([]model.GeneratedDescription, error) {
	var list []model.GeneratedDescription
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf(routeGeneratedByFigure, figureID), nil, &list); err != nil {
		return nil, fmt.Errorf("list generated descriptions for figure %d: %w", figureID, err)
	}
	return list, nil
}

// AppendEvent records an event. The response body is not decoded.
func (s *HTTPStore) AppendEvent(ctx context.Context, e model.Event) error {
	if err := s.do(ctx, http.MethodPost, routeEvent, e, nil); err != nil {
		return fmt.Errorf("append %s event: %w", e.Type, err)
	}
	return nil
}

type settingsPayload struct {
	ID           int64                  `json:"id"`
	Settings     model.Settings         `json:"settings"`
	History      []model.SettingsChange `json:"history"`
	UserID       int64                  `json:"user_id"`
	StudySession bool                   `json:"study_session"`
}

// UpsertSettings stores the current settings. The API expects the full
// history from the client and appends the replaced value to it.
func (s *HTTPStore) UpsertSettings(ctx context.Context, r model.SettingsRecord) (*model.SettingsRecord, error) {
	payload := settingsPayload{
		ID:           r.ID,
		Settings:     r.CurrentSettings,
		History:      r.History,
		UserID:       r.UserID,
		StudySession: r.StudySession,
	}
	if payload.History == nil {
		payload.History = []model.SettingsChange{}
	}

	var out model.SettingsRecord
	if err := s.do(ctx, http.MethodPost, fmt.Sprintf(routeSettingsByID, r.ID), payload, &out); err != nil {
		return nil, fmt.Errorf("upsert settings: %w", err)
	}
	return &out, nil
}

// SettingsByUser returns the user's newest settings record
func (s *HTTPStore) SettingsByUser(ctx context.Context, userID int64) (*model.SettingsRecord, error) {
	var list []model.SettingsRecord
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf(routeSettingsByUser, userID), nil, &list); err != nil {
		return nil, fmt.Errorf("get settings for user %d: %w", userID, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("settings for user %d: %w", userID, ErrNotFound)
	}
	newest := list[0]
	for _, r := range list[1:] {
		if r.ID > newest.ID {
			newest = r
		}
	}
	return &newest, nil
}

func (s *HTTPStore) do(ctx context.Context, method, route string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, s.baseURL+route, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	s.logger.Debug("store request",
		"method", method,
		"route", route,
		"status", httpResp.StatusCode,
		"duration", time.Since(start))

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
		return fmt.Errorf("store error (%d): %s", httpResp.StatusCode, errorMessage(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies, falling back to the raw body
func errorMessage(body []byte) string {
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBodyInMessageLength {
		msg = msg[:maxErrorBodyInMessageLength] + "..."
	}
	return msg
}
