package signup

import "github.com/hitoshi/campaignhub/internal/model"

// roleRedirects は登録完了後の遷移先。ログイン画面を経由してロール別のオンボーディングへ進む。
// model.Roles() に追加したロールは必ずここにも追加すること。
var roleRedirects = map[model.Role]string{
	model.RoleAdvertiser: "/login?onboarding=advertiser&next=%2Fonboarding%2Fadvertiser",
	model.RoleInfluencer: "/login?onboarding=influencer&next=%2Fonboarding%2Finfluencer",
}

// RedirectFor はロールに対応する登録完了後の遷移先を返す。
func RedirectFor(role model.Role) (string, bool) {
	to, ok := roleRedirects[role]
	return to, ok
}
