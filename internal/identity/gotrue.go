package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// adminUsersPath は管理APIのユーザー作成エンドポイント。
	adminUsersPath = "/admin/users"
	// serviceRole は管理APIの呼び出しに必要なキーのロール。
	serviceRole = "service_role"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// GoTrueClient はGoTrue互換の管理APIを使って認証IDを作成するクライアント。
type GoTrueClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // {baseURL}/admin/users
	serviceKey string
}

// NewGoTrueClient はGoTrueClientを生成する。
// baseURLは認証サービスのベースURL（例: https://xyz.supabase.co/auth/v1）。
// serviceKeyがJWTの場合はroleクレームがservice_roleであることを確認する。
func NewGoTrueClient(httpClient *http.Client, logger *slog.Logger, baseURL, serviceKey string) (*GoTrueClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid identity service URL: %q", baseURL)
	}
	if err := CheckServiceKey(serviceKey); err != nil {
		return nil, err
	}

	return &GoTrueClient{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   u.String() + adminUsersPath,
		serviceKey: serviceKey,
	}, nil
}

// CheckServiceKey は管理APIキーを検査する。
// JWT形式のキーは署名を検証せずにクレームを読み、roleがservice_roleでなければエラーを返す。
// JWT形式でないキー（新形式のシークレットキー）は空でなければ受け入れる。
func CheckServiceKey(key string) error {
	if key == "" {
		return errors.New("identity service key is empty")
	}
	if strings.Count(key, ".") != 2 {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return fmt.Errorf("failed to parse identity service key: %w", err)
	}
	role, _ := claims["role"].(string)
	if role != serviceRole {
		return fmt.Errorf("identity service key must have role %q, got %q", serviceRole, role)
	}
	return nil
}

type createUserRequest struct {
	Email        string            `json:"email"`
	Password     string            `json:"password"`
	EmailConfirm bool              `json:"email_confirm"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`
}

type createUserResponse struct {
	ID string `json:"id"`
	// 一部のバージョンはuserオブジェクトで包んで返す
	User *struct {
		ID string `json:"id"`
	} `json:"user"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// CreateAccount は確認済み状態の認証IDを作成する。
func (c *GoTrueClient) CreateAccount(ctx context.Context, params AccountParams) (string, error) {
	payload, err := json.Marshal(createUserRequest{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: true,
		UserMetadata: params.Metadata,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode create user request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build create user request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("認証サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to call identity service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read identity service response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := parseErrorResponse(resp.StatusCode, body)
		c.logger.Warn("認証サービスがアカウント作成を拒否しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("error_code", perr.Code),
		)
		return "", perr
	}

	var created createUserResponse
	if err := json.Unmarshal(body, &created); err != nil {
		c.logger.Error("認証サービスのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", nil
	}
	if created.ID == "" && created.User != nil {
		return created.User.ID, nil
	}
	return created.ID, nil
}

// parseErrorResponse はエラーレスポンスをProviderErrorに変換する。
// メッセージは msg, message, error_description, error の順に採用する。
func parseErrorResponse(status int, body []byte) *ProviderError {
	perr := &ProviderError{StatusCode: status}

	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		perr.Message = strings.TrimSpace(string(body))
		return perr
	}

	perr.Code = er.ErrorCode
	for _, m := range []string{er.Msg, er.Message, er.ErrorDescription, er.Error} {
		if m != "" {
			perr.Message = m
			break
		}
	}
	return perr
}

// compile-time interface check
var _ Provider = (*GoTrueClient)(nil)
