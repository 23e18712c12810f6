// Package signup は会員登録（認証ID作成、プロフィール作成、規約同意記録）を順に実行する。
// 途中で失敗しても前の手順の結果は取り消さない。
package signup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hitoshi/campaignhub/internal/identity"
	"github.com/hitoshi/campaignhub/internal/model"
	"github.com/hitoshi/campaignhub/internal/repository"
)

// 手順名（メトリクスとトレースのラベル）
const (
	StepProvisionAccount = "provision_account"
	StepPersistProfile   = "persist_profile"
	StepRecordConsent    = "record_consent"
)

// OutcomeSuccess は成功時の結果ラベル。失敗時はエラーコードをラベルにする。
const OutcomeSuccess = "SUCCESS"

const defaultTimeout = 15 * time.Second

// Recorder は会員登録の結果と所要時間を記録する。
type Recorder interface {
	ObserveStep(step string, d time.Duration)
	IncOutcome(outcome string)
	IncOrphanedIdentity(step string)
}

// Dependencies はServiceの依存関係。
type Dependencies struct {
	Provider  identity.Provider
	Profiles  repository.ProfileRepository
	Terms     repository.TermsAcceptanceRepository
	Validator *Validator
	Recorder  Recorder
	Logger    *slog.Logger
	// Timeout は1回の会員登録全体の期限。0以下の場合は15秒。
	Timeout time.Duration
	// TracerProvider が nil の場合はグローバルのプロバイダーを使用する。
	TracerProvider trace.TracerProvider
}

// Service は会員登録のユースケースを提供する。
type Service struct {
	provider  identity.Provider
	profiles  repository.ProfileRepository
	terms     repository.TermsAcceptanceRepository
	validator *Validator
	recorder  Recorder
	logger    *slog.Logger
	timeout   time.Duration
	tracer    trace.Tracer
}

// NewService はServiceを生成する。
func NewService(deps Dependencies) *Service {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	v := deps.Validator
	if v == nil {
		v = NewValidator()
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Service{
		provider:  deps.Provider,
		profiles:  deps.Profiles,
		terms:     deps.Terms,
		validator: v,
		recorder:  rec,
		logger:    logger,
		timeout:   timeout,
		tracer:    tp.Tracer("github.com/hitoshi/campaignhub/internal/signup"),
	}
}

// Signup はリクエストを検証し、認証ID、プロフィール、規約同意履歴の順に作成する。
// 失敗した場合は最初に失敗した手順に対応する*model.APIErrorを返す。
func (s *Service) Signup(ctx context.Context, req *Request) (*model.SignupResult, error) {
	ctx, span := s.tracer.Start(ctx, "signup.Signup")
	defer span.End()

	result, err := s.signup(ctx, req)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = model.ErrCodeInternal
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			outcome = apiErr.Code
		}
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(attribute.String("signup.role", string(result.Role)))
	}
	span.SetAttributes(attribute.String("signup.outcome", outcome))
	s.recorder.IncOutcome(outcome)

	return result, err
}

func (s *Service) signup(ctx context.Context, req *Request) (*model.SignupResult, error) {
	// 1. 入力検証（副作用なし）
	input, err := s.validator.Validate(req)
	if err != nil {
		return nil, err
	}

	// 2. ロールに対応する遷移先を副作用の前に確定する
	redirectTo, ok := RedirectFor(input.Role)
	if !ok {
		s.logger.Error("ロールに対応する遷移先が定義されていません", slog.String("role", string(input.Role)))
		return nil, model.NewInternalError()
	}

	deadline := time.Now().Add(s.timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	// 3. 認証IDの作成
	authUserID, err := s.provisionAccount(ctx, input)
	if err != nil {
		return nil, err
	}

	// 認証ID作成後はクライアントの切断で中断せず、残りの期限内で完了させる
	detached, cancelDetached := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancelDetached()

	// 4. プロフィールの作成
	profileID, err := s.persistProfile(detached, authUserID, input)
	if err != nil {
		s.recorder.IncOrphanedIdentity(StepPersistProfile)
		return nil, err
	}

	// 5. 規約同意履歴の記録
	if err := s.recordConsent(detached, authUserID, profileID, input.AcceptedTermsTypes); err != nil {
		s.recorder.IncOrphanedIdentity(StepRecordConsent)
		return nil, err
	}

	s.logger.Info("会員登録が完了しました",
		slog.String("auth_user_id", authUserID),
		slog.String("profile_id", profileID),
		slog.String("role", string(input.Role)),
	)

	return &model.SignupResult{
		RedirectTo: redirectTo,
		Role:       input.Role,
		ProfileID:  profileID,
		AuthUserID: authUserID,
	}, nil
}

// provisionAccount は確認済みの認証IDを作成し、そのIDを返す。
func (s *Service) provisionAccount(ctx context.Context, input *model.SignupInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "signup."+StepProvisionAccount)
	defer span.End()
	defer s.observe(StepProvisionAccount, time.Now())

	id, err := s.provider.CreateAccount(ctx, identity.AccountParams{
		Email:    input.Email,
		Password: input.Password,
		Metadata: map[string]string{
			"name":  input.Name,
			"phone": input.Phone,
		},
	})
	if err != nil {
		span.RecordError(err)
		return "", s.classifyProviderError(err, input.Email)
	}

	if _, perr := uuid.Parse(id); perr != nil {
		span.SetStatus(codes.Error, "unidentifiable account")
		s.logger.Error("認証IDを作成しましたがIDを確認できませんでした",
			slog.String("email", input.Email),
			slog.String("returned_id", id),
		)
		return "", model.NewAuthUnidentifiableError()
	}

	span.SetAttributes(attribute.String("signup.auth_user_id", id))
	return id, nil
}

// classifyProviderError は認証サービスのエラーを登録済みメールアドレス、作成拒否、通信失敗に分類する。
// 構造化エラーコードを優先し、無い場合はメッセージに "already" が含まれるかで重複を判定する。
func (s *Service) classifyProviderError(err error, email string) error {
	var perr *identity.ProviderError
	isRejection := errors.As(err, &perr)

	if errors.Is(err, identity.ErrEmailExists) || (isRejection && mentionsAlready(perr.Message)) {
		s.logger.Warn("登録済みのメールアドレスで会員登録が試行されました", slog.String("email", email))
		return model.NewEmailAlreadyExistsError()
	}

	if isRejection {
		s.logger.Warn("認証サービスがアカウント作成を拒否しました",
			slog.Int("provider_status", perr.StatusCode),
			slog.String("provider_code", perr.Code),
			slog.String("message", perr.Message),
		)
		return model.NewAuthCreateFailedError(perr.Message)
	}

	s.logger.Error("認証サービスの呼び出しに失敗しました", slog.String("error", err.Error()))
	return model.NewAuthUnavailableError()
}

func mentionsAlready(message string) bool {
	return strings.Contains(strings.ToLower(message), "already")
}

// persistProfile はプロフィールを作成し、そのIDを返す。
func (s *Service) persistProfile(ctx context.Context, authUserID string, input *model.SignupInput) (string, error) {
	ctx, span := s.tracer.Start(ctx, "signup."+StepPersistProfile)
	defer span.End()
	defer s.observe(StepPersistProfile, time.Now())

	profileID, err := s.profiles.Create(ctx, &model.Profile{
		AuthUserID: authUserID,
		Name:       input.Name,
		Phone:      input.Phone,
		Email:      input.Email,
		Role:       input.Role,
	})
	if err == nil && profileID == "" {
		err = errors.New("profile insert returned no id")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile create failed")
		s.logger.Error("認証ID作成後にプロフィールの作成に失敗しました",
			slog.String("auth_user_id", authUserID),
			slog.String("error", err.Error()),
		)
		return "", model.NewProfileCreateFailedError(storeMessage(err))
	}

	return profileID, nil
}

// recordConsent は同意した規約種別ごとに1行ずつ、一括で記録する。
func (s *Service) recordConsent(ctx context.Context, authUserID, profileID string, termsTypes []string) error {
	ctx, span := s.tracer.Start(ctx, "signup."+StepRecordConsent)
	defer span.End()
	defer s.observe(StepRecordConsent, time.Now())

	span.SetAttributes(attribute.StringSlice("signup.terms_types", termsTypes))

	if err := s.terms.CreateBatch(ctx, profileID, termsTypes); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "terms save failed")
		s.logger.Error("プロフィール作成後に規約同意履歴の保存に失敗しました",
			slog.String("auth_user_id", authUserID),
			slog.String("profile_id", profileID),
			slog.String("error", err.Error()),
		)
		return model.NewTermsSaveFailedError(storeMessage(err))
	}

	return nil
}

func (s *Service) observe(step string, start time.Time) {
	s.recorder.ObserveStep(step, time.Since(start))
}

// storeMessage はデータベースが返したエラーメッセージを取り出す。
// 接続断やタイムアウトなどデータベース由来でないエラーの場合は空文字列を返す。
func storeMessage(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return ""
}

type nopRecorder struct{}

func (nopRecorder) ObserveStep(string, time.Duration) {}
func (nopRecorder) IncOutcome(string)                 {}
func (nopRecorder) IncOrphanedIdentity(string)        {}
