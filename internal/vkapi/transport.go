package vkapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// DefaultTimeout applies when no request timeout is configured.
const DefaultTimeout = time.Second

// Transport performs one remote method call with the given credential.
type Transport interface {
	Do(ctx context.Context, token, method string, params url.Values) (any, error)
}

// HTTPTransport posts form-encoded calls to {baseURL}/method/{name} and
// unwraps the {"response": ...} / {"error": {...}} envelope. Numbers in the
// decoded response are json.Number.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *struct {
		Code        int    `json:"error_code"`
		Message     string `json:"error_msg"`
		RedirectURI string `json:"redirect_uri"`
	} `json:"error"`
}

func (t *HTTPTransport) Do(ctx context.Context, token, method string, params url.Values) (any, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = append([]string(nil), v...)
	}
	if token != "" {
		form.Set("access_token", token)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/method/"+method, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{StatusCode: resp.StatusCode, Method: method}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &MalformedError{Kind: BadEnvelope, Value: string(body)}
	}
	if env.Error != nil {
		return nil, &Error{
			Code:        env.Error.Code,
			Message:     env.Error.Message,
			RedirectURI: env.Error.RedirectURI,
			Method:      method,
			Params:      params,
		}
	}
	if len(env.Response) == 0 {
		return nil, &MalformedError{Kind: BadEnvelope, Value: string(body)}
	}

	return decodeResponse(env.Response)
}

func decodeResponse(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &MalformedError{Kind: BadEnvelope, Value: string(raw)}
	}
	return v, nil
}
