package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"go.uber.org/zap"
)

// Alias chains for the context-translate response, highest priority first.
var (
	refinedEnglishAliases = []string{"english_sentence", "refined", "english", "en"}
	refinedHindiAliases   = []string{"hindi_translation", "hi", "hindi"}
)

type GestureAPIClient struct {
	BaseURL string
	Client  *http.Client
	now     func() time.Time
}

type predictRequest struct {
	Image string `json:"image"`
}

type predictResponse struct {
	Gesture       string `json:"gesture"`
	TranslationEn string `json:"translation_en"`
	TranslationHi string `json:"translation_hi"`
}

type contextRequest struct {
	Gesture string `json:"gesture"`
}

// NewGestureAPIClient talks to the recognizer service. A zero timeout leaves
// calls unbounded apart from the caller's context.
func NewGestureAPIClient(baseURL string, timeout time.Duration) *GestureAPIClient {
	return &GestureAPIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
}

// Recognize submits one snapshot to /predict.
func (c *GestureAPIClient) Recognize(ctx context.Context, snapshot models.Snapshot) (*models.RecognitionResult, error) {
	start := c.now()

	var resp predictResponse
	if err := c.postJSON(ctx, "/predict", predictRequest{Image: snapshot.DataURL()}, &resp); err != nil {
		return nil, err
	}

	result := &models.RecognitionResult{
		Gesture:       strings.TrimSpace(resp.Gesture),
		TranslationEn: strings.TrimSpace(resp.TranslationEn),
		TranslationHi: strings.TrimSpace(resp.TranslationHi),
		Latency:       c.now().Sub(start),
	}
	if result.TranslationEn == "" {
		result.TranslationEn = result.Gesture
	}

	zap.L().Debug("/predict completed",
		zap.String("gesture", result.Gesture),
		zap.Duration("latency", result.Latency))
	return result, nil
}

// Refine asks /context-translate for a full sentence built around the gesture.
func (c *GestureAPIClient) Refine(ctx context.Context, gesture string) (*models.ContextResult, error) {
	start := c.now()

	var fields map[string]any
	if err := c.postJSON(ctx, "/context-translate", contextRequest{Gesture: gesture}, &fields); err != nil {
		return nil, err
	}

	result := &models.ContextResult{
		English: resolveAlias(fields, refinedEnglishAliases),
		Hindi:   resolveAlias(fields, refinedHindiAliases),
		Latency: c.now().Sub(start),
	}

	zap.L().Debug("/context-translate completed",
		zap.String("gesture", gesture),
		zap.String("english", result.English),
		zap.Duration("latency", result.Latency))
	return result, nil
}

// Health checks the recognizer's /health endpoint.
func (c *GestureAPIClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gesture API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gesture API health returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *GestureAPIClient) postJSON(ctx context.Context, path string, body any, dest any) error {
	requestBodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send HTTP request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gesture API %s returned status %d: %s", path, resp.StatusCode, string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", path, err)
	}
	return nil
}

// resolveAlias returns the first non-blank string among the named fields.
func resolveAlias(fields map[string]any, aliases []string) string {
	for _, name := range aliases {
		s, ok := fields[name].(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
