package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"MaizeAIBackend/retry"
)

var ErrUnknownDisease = errors.New("detector returned a disease outside the catalogue")

type modelRequest struct {
	ImageURL   string   `json:"image_url"`
	Candidates []string `json:"candidates"`
}

type modelResponse struct {
	DiseaseID  string  `json:"disease_id"`
	Confidence float64 `json:"confidence"`
}

// ModelClient posts the image URL to an external classification endpoint.
type ModelClient struct {
	url    string
	client *http.Client
	policy retry.Policy
}

func NewModelClient(url string, timeout time.Duration) *ModelClient {
	return &ModelClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
		policy: retry.Policy{
			MaxAttempts: 2,
			NewBackoff:  func() goretry.Backoff { return goretry.NewConstant(200 * time.Millisecond) },
			Retryable:   func(err error) bool { return errors.As(err, new(*serverError)) },
			Name:        "detect",
		},
	}
}

type serverError struct{ status int }

func (e *serverError) Error() string { return fmt.Sprintf("model endpoint returned %d", e.status) }

func (m *ModelClient) Detect(ctx context.Context, in Input) (Detection, error) {
	if len(in.Catalog) == 0 {
		return Detection{}, ErrEmptyCatalogue
	}
	req := modelRequest{ImageURL: in.ImageURL, Candidates: make([]string, 0, len(in.Catalog))}
	for _, d := range in.Catalog {
		req.Candidates = append(req.Candidates, d.ID)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Detection{}, err
	}

	var resp modelResponse
	err = m.policy.Do(ctx, func(ctx context.Context) error {
		resp, err = m.call(ctx, body)
		return err
	})
	if err != nil {
		return Detection{}, err
	}

	if resp.DiseaseID == "" {
		return Detection{}, nil
	}
	if resp.Confidence < 0 || resp.Confidence > 1 {
		return Detection{}, fmt.Errorf("model confidence %v out of range", resp.Confidence)
	}
	for _, d := range in.Catalog {
		if d.ID == resp.DiseaseID {
			d := d
			return Detection{Disease: &d, Confidence: resp.Confidence}, nil
		}
	}
	return Detection{}, fmt.Errorf("%w: %q", ErrUnknownDisease, resp.DiseaseID)
}

func (m *ModelClient) call(ctx context.Context, body []byte) (modelResponse, error) {
	var out modelResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return out, fmt.Errorf("call model endpoint: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		_, _ = io.Copy(io.Discard, res.Body)
		return out, &serverError{status: res.StatusCode}
	}
	if res.StatusCode != http.StatusOK {
		return out, fmt.Errorf("model endpoint returned %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode model response: %w", err)
	}
	return out, nil
}
