package console

import (
	"context"
	"errors"
	"strings"

	"github.com/qs3c/subhub/internal/model/dto"
)

// Redeemer 提交兑换码
type Redeemer interface {
	TopUp(ctx context.Context, key string, forceOverride bool) (*dto.TopUpResponse, error)
}

// Confirmer 询问用户是否替换现有订阅，conflict 可能为 nil（服务端未附带详情）
type Confirmer interface {
	ConfirmOverride(ctx context.Context, conflict *dto.ConflictInfo) (bool, error)
}

// ConfirmerFunc 函数适配 Confirmer
type ConfirmerFunc func(ctx context.Context, conflict *dto.ConflictInfo) (bool, error)

func (f ConfirmerFunc) ConfirmOverride(ctx context.Context, conflict *dto.ConflictInfo) (bool, error) {
	return f(ctx, conflict)
}

// Outcome 一次兑换的结局
type Outcome int

const (
	OutcomeRedeemed Outcome = iota + 1
	OutcomeCancelled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedeemed:
		return "redeemed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result 兑换结果
type Result struct {
	Outcome  Outcome
	Response *dto.TopUpResponse
	Conflict *dto.ConflictInfo // 遇到冲突时的现有订阅
	Message  string
	Err      error
}

// Resolver 兑换码冲突处理：先以不覆盖提交，冲突时询问用户，同意后带 force_override 重提一次
type Resolver struct {
	redeemer  Redeemer
	confirmer Confirmer

	// OnSuccess 兑换成功后调用，通常用于刷新订阅列表
	OnSuccess func(ctx context.Context) error
}

func NewResolver(redeemer Redeemer, confirmer Confirmer) *Resolver {
	return &Resolver{
		redeemer:  redeemer,
		confirmer: confirmer,
	}
}

// Redeem 兑换。失败不重试，服务端消息原样返回
func (r *Resolver) Redeem(ctx context.Context, code string) Result {
	resp, err := r.redeemer.TopUp(ctx, code, false)
	if err == nil {
		return r.succeed(ctx, resp, nil)
	}
	if !errors.Is(err, ErrSubscriptionConflict) {
		return failed(err)
	}

	conflict := conflictInfo(err)
	ok, cerr := r.confirmer.ConfirmOverride(ctx, conflict)
	if cerr != nil {
		return Result{Outcome: OutcomeFailed, Conflict: conflict, Message: cerr.Error(), Err: cerr}
	}
	if !ok {
		return Result{Outcome: OutcomeCancelled, Conflict: conflict, Message: "已取消兑换"}
	}

	resp, err = r.redeemer.TopUp(ctx, code, true)
	if err != nil {
		res := failed(err)
		res.Conflict = conflict
		return res
	}
	return r.succeed(ctx, resp, conflict)
}

func (r *Resolver) succeed(ctx context.Context, resp *dto.TopUpResponse, conflict *dto.ConflictInfo) Result {
	res := Result{Outcome: OutcomeRedeemed, Response: resp, Conflict: conflict, Message: "兑换成功"}
	if r.OnSuccess != nil {
		// 刷新失败不改变兑换结局
		if err := r.OnSuccess(ctx); err != nil {
			res.Err = err
		}
	}
	return res
}

func failed(err error) Result {
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
	}
	return Result{Outcome: OutcomeFailed, Message: msg, Err: err}
}

func conflictInfo(err error) *dto.ConflictInfo {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	var info dto.ConflictInfo
	if apiErr.DecodeData(&info) != nil {
		return nil
	}
	return &info
}

// RedeemForm 兑换输入框
type RedeemForm struct {
	Code string
	Last Result

	resolver *Resolver
}

func NewRedeemForm(resolver *Resolver) *RedeemForm {
	return &RedeemForm{resolver: resolver}
}

// Submit 提交当前输入，成功后清空输入
func (f *RedeemForm) Submit(ctx context.Context) Result {
	code := strings.TrimSpace(f.Code)
	if code == "" {
		f.Last = Result{Outcome: OutcomeFailed, Message: "请输入兑换码"}
		return f.Last
	}

	f.Last = f.resolver.Redeem(ctx, code)
	if f.Last.Outcome == OutcomeRedeemed {
		f.Code = ""
	}
	return f.Last
}
