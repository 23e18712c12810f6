package model

import "time"

// AuthUser はローカル認証プロバイダーが保持する認証IDを表す。
// 外部の認証サービスを使う場合は作成されない。
type AuthUser struct {
	ID               string
	Email            string
	PasswordHash     string
	Metadata         map[string]string
	EmailConfirmedAt *time.Time
	CreatedAt        time.Time
}
