package signup

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/campaignhub/internal/model"
)

// Request は会員登録APIのリクエストボディ。
type Request struct {
	Name               string   `json:"name" validate:"min=1,max=100"`
	Phone              string   `json:"phone" validate:"min=1,max=30"`
	Email              string   `json:"email" validate:"email,max=255"`
	Password           string   `json:"password" validate:"min=6"`
	ConfirmPassword    string   `json:"confirmPassword" validate:"eqfield=Password"`
	Role               string   `json:"role" validate:"role"`
	AcceptedTermsTypes []string `json:"acceptedTermsTypes" validate:"min=1,required_terms"`
}

// violationMessages は入力項目とルールの組み合わせごとの違反メッセージ。
var violationMessages = map[string]map[string]string{
	"name": {
		"min": "氏名を入力してください。",
		"max": "氏名は100文字以内で入力してください。",
	},
	"phone": {
		"min": "電話番号を入力してください。",
		"max": "電話番号は30文字以内で入力してください。",
	},
	"email": {
		"email": "メールアドレスの形式が正しくありません。",
		"max":   "メールアドレスは255文字以内で入力してください。",
	},
	"password": {
		"min": "パスワードは6文字以上で入力してください。",
	},
	"confirmPassword": {
		"eqfield": "パスワードが一致しません。",
	},
	"role": {
		"role": "広告主またはインフルエンサーを選択してください。",
	},
	"acceptedTermsTypes": {
		"min":            "必須の規約に同意してください。",
		"required_terms": "必須の規約すべてに同意してください。",
	},
}

// Validator は会員登録リクエストを検証し、正規化された入力に変換する。
type Validator struct {
	validate *validator.Validate
}

// NewValidator はValidatorを生成する。
// 違反の報告キーにはJSONのフィールド名を使用する。
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// RegisterValidationは未知のタグ名以外ではエラーを返さない
	_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		_, ok := model.ParseRole(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("required_terms", func(fl validator.FieldLevel) bool {
		types, ok := fl.Field().Interface().([]string)
		return ok && containsAll(types, model.RequiredTermsTypes())
	})

	return &Validator{validate: v}
}

// Validate はリクエストを検証する。
// 違反がある場合はすべての違反を項目ごとにまとめた検証エラーを返す。
func (v *Validator) Validate(req *Request) (*model.SignupInput, error) {
	if req == nil {
		return nil, model.NewValidationError(nil)
	}

	if err := v.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, model.NewValidationError(nil)
		}
		return nil, model.NewValidationError(toDetails(verrs))
	}

	role, _ := model.ParseRole(req.Role)
	return &model.SignupInput{
		Name:               req.Name,
		Phone:              req.Phone,
		Email:              req.Email,
		Password:           req.Password,
		Role:               role,
		AcceptedTermsTypes: dedupe(req.AcceptedTermsTypes),
	}, nil
}

func toDetails(verrs validator.ValidationErrors) map[string][]string {
	details := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		msg, ok := violationMessages[field][fe.Tag()]
		if !ok {
			msg = "入力内容が正しくありません。"
		}
		details[field] = append(details[field], msg)
	}
	return details
}

func containsAll(types, required []string) bool {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// dedupe は出現順を保ったまま重複を取り除く。
func dedupe(types []string) []string {
	seen := make(map[string]struct{}, len(types))
	out := make([]string, 0, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
