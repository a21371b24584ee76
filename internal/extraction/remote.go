package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/harmonia-labs/harmonia-go/internal/domain"
)

// Remote asks an external extraction service to answer a query. The
// credential is read from the key source per request, so rotations take
// effect without a restart.
type Remote struct {
	endpoint string
	keys     KeySource
	client   *http.Client
}

func NewRemote(endpoint string, keys KeySource) *Remote {
	return &Remote{
		endpoint: endpoint,
		keys:     keys,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type extractRequest struct {
	Query string `json:"query"`
}

type extractResponse struct {
	Answer     string `json:"answer"`
	References []struct {
		Text string `json:"text"`
		URL  string `json:"url"`
	} `json:"references"`
}

func (r *Remote) Extract(ctx context.Context, query string) (Answer, error) {
	key, err := r.keys.CurrentKey(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: extraction key: %v", domain.ErrExternalCall, err)
	}
	body, err := json.Marshal(extractRequest{Query: query})
	if err != nil {
		return Answer{}, fmt.Errorf("encode extraction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Answer{}, fmt.Errorf("%w: build extraction request: %v", domain.ErrExternalCall, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := r.client.Do(req)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: call extraction service: %v", domain.ErrExternalCall, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return Answer{}, ErrNoAnswer
	case resp.StatusCode != http.StatusOK:
		return Answer{}, fmt.Errorf("%w: extraction service status %d", domain.ErrExternalCall, resp.StatusCode)
	}

	var decoded extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Answer{}, fmt.Errorf("%w: decode extraction response: %v", domain.ErrExternalCall, err)
	}
	if strings.TrimSpace(decoded.Answer) == "" {
		return Answer{}, ErrNoAnswer
	}
	answer := Answer{Text: decoded.Answer}
	for _, ref := range decoded.References {
		answer.References = append(answer.References, domain.Reference{Text: ref.Text, URL: ref.URL})
	}
	return answer, nil
}
