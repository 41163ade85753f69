// Package client はAPIサーバーへのHTTPゲートウェイ実装を提供する。
// sessionパッケージのIdentityProvider/ProfileStoreインターフェースを
// サーバーのREST APIに接続する。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/rxnote/internal/model"
)

// DefaultTimeout はHTTPリクエストのデフォルトタイムアウト。
const DefaultTimeout = 15 * time.Second

const maxErrorBodySize = 64 * 1024

// Config はAPIクライアントの設定。
type Config struct {
	// BaseURL はAPIサーバーのベースURL（必須）。
	BaseURL string
	// APIKey はX-API-Keyヘッダーで送信するAPIキー（必須）。
	APIKey string
	// Timeout はHTTPリクエストのタイムアウト。ゼロの場合はDefaultTimeout。
	Timeout time.Duration
	// Logger はログ出力先（任意）。
	Logger *slog.Logger
}

// Client はAPIサーバーへのHTTPクライアント。
// セッションCookieをcookiejarで保持し、認証済みリクエストを継続する。
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// New はClientを生成する。
// BaseURLまたはAPIKeyが欠落している場合は即座にエラーを返す。
// 欠落したまま動作を続けると全リクエストが不可解な失敗をするため、
// 起動時に検出して失敗させる。
func New(cfg Config) (*Client, error) {
	missing := []string{}
	if cfg.BaseURL == "" {
		missing = append(missing, "BaseURL")
	}
	if cfg.APIKey == "" {
		missing = append(missing, "APIKey")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("APIクライアントの必須設定が不足しています: %s", strings.Join(missing, ", "))
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("BaseURLの解析に失敗しました: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("BaseURLはhttpまたはhttpsである必要があります: %s", cfg.BaseURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookiejarの初期化に失敗しました: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// doJSON はJSONリクエストを実行し、2xxの場合はoutへデコードする。
// 非2xxの場合はレスポンスボディをAPIErrorとしてデコードして返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "RxNote/1.0 API Client")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	return resp.StatusCode, c.decodeError(resp)
}

// decodeError は非2xxレスポンスのボディをAPIErrorへ変換する。
// 統一エラーフォーマットでない場合はHTTPステータスのみのエラーを返す。
func (c *Client) decodeError(resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return fmt.Errorf("エラーレスポンスの読み取りに失敗しました (HTTP %d): %w", resp.StatusCode, err)
	}

	var apiErr model.APIError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Code != "" {
		return &apiErr
	}

	c.logger.Warn("統一フォーマットでないエラーレスポンスを受信しました",
		slog.Int("http_status", resp.StatusCode),
		slog.String("url", resp.Request.URL.String()),
	)
	return fmt.Errorf("APIリクエストが失敗しました (HTTP %d)", resp.StatusCode)
}

// isStatus はエラーが指定コードのAPIErrorかどうかを返す。
func isStatus(err error, code string) bool {
	var apiErr *model.APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}
