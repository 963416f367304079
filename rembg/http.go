package rembg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 2 * time.Minute
	defaultRetryMax    = 2
	maxResponseBytes   = 64 << 20
)

// httpRemover 调用 rembg 服务的 /api/remove 接口
type httpRemover struct {
	endpoint string
	model    string
	matting  bool
	client   *http.Client
	// RetryMax 为最大重试次数（不含首次），仅对网络错误与 5xx 重试
	retryMax int
	backoff  time.Duration
}

func newHTTPRemover(base, model string, matting bool, timeout time.Duration) (*httpRemover, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid rembg url %q", base)
	}
	if timeout <= 0 || timeout > defaultHTTPTimeout {
		timeout = defaultHTTPTimeout
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/remove"
	return &httpRemover{
		endpoint: u.String(),
		model:    model,
		matting:  matting,
		client:   &http.Client{Timeout: timeout},
		retryMax: defaultRetryMax,
		backoff:  500 * time.Millisecond,
	}, nil
}

func (r *httpRemover) Name() string {
	return fmt.Sprintf("rembg service %s (%s)", r.endpoint, r.model)
}

func (r *httpRemover) body(data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "frame.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", err
	}
	_ = mw.WriteField("model", r.model)
	if r.matting {
		_ = mw.WriteField("a", "true")
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("rembg service: HTTP %d: %s", e.code, e.msg)
}

func (r *httpRemover) Remove(ctx context.Context, data []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
		out, err := r.once(ctx, data)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, lastErr
		}
		var se *statusError
		if errors.As(err, &se) && se.code < 500 {
			return nil, err
		}
	}
	return nil, lastErr
}

func (r *httpRemover) once(ctx context.Context, data []byte) ([]byte, error) {
	body, contentType, err := r.body(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(out))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, &statusError{code: resp.StatusCode, msg: msg}
	}
	if len(out) == 0 {
		return nil, errors.New("rembg service: empty response")
	}
	return out, nil
}
