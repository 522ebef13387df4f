package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bbservices/bbservices/internal/model"
)

const contentType = "application/json"

// HTTPPublisher posts reports as json to a URL.
type HTTPPublisher struct {
	requestURL *url.URL
	client     *http.Client
}

func NewHTTPPublisher(serverURL string, client *http.Client) (*HTTPPublisher, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	if (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return nil, errors.New("please define the report url with a http(s) scheme and a host, e.g. `http://some-url.com/reports`")
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPPublisher{requestURL: parsedURL, client: client}, nil
}

func (p *HTTPPublisher) Publish(ctx context.Context, report model.Report) error {
	var body bytes.Buffer
	if err := Encode(&body, FormatJSON, report); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.requestURL.String(), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("publishing report: status: %d, body: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	slog.DebugContext(ctx, "report published", "url", p.requestURL.String(), "status", resp.StatusCode)
	return nil
}
