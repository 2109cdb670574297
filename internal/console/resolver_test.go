package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
)

type topUpCall struct {
	Key   string
	Force bool
}

// fakeRedeemer 按顺序返回预设结果并记录调用
type fakeRedeemer struct {
	calls   []topUpCall
	results []error
}

func (f *fakeRedeemer) TopUp(ctx context.Context, key string, force bool) (*dto.TopUpResponse, error) {
	f.calls = append(f.calls, topUpCall{Key: key, Force: force})
	i := len(f.calls) - 1
	if i < len(f.results) && f.results[i] != nil {
		return nil, f.results[i]
	}
	return &dto.TopUpResponse{Type: 2, SubscriptionName: "Pro"}, nil
}

func conflictErr() error {
	data, _ := json.Marshal(dto.ConflictInfo{UserSubscriptionID: 5, SubscriptionName: "Basic"})
	return &APIError{Message: "已有生效中的订阅", Code: response.CodeSubscriptionConflict, Data: data}
}

func confirmWith(answer bool, asked *int) Confirmer {
	return ConfirmerFunc(func(ctx context.Context, conflict *dto.ConflictInfo) (bool, error) {
		*asked++
		return answer, nil
	})
}

func TestResolver_DirectSuccess(t *testing.T) {
	redeemer := &fakeRedeemer{}
	asked := 0
	refreshed := 0
	r := NewResolver(redeemer, confirmWith(true, &asked))
	r.OnSuccess = func(ctx context.Context) error {
		refreshed++
		return nil
	}

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeRedeemed, res.Outcome)
	assert.Equal(t, []topUpCall{{Key: "CODE", Force: false}}, redeemer.calls)
	assert.Zero(t, asked)
	assert.Equal(t, 1, refreshed)
}

func TestResolver_ConflictDeclined(t *testing.T) {
	redeemer := &fakeRedeemer{results: []error{conflictErr()}}
	asked := 0
	refreshed := 0
	r := NewResolver(redeemer, confirmWith(false, &asked))
	r.OnSuccess = func(ctx context.Context) error {
		refreshed++
		return nil
	}

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeCancelled, res.Outcome)
	assert.Equal(t, 1, asked)
	assert.Zero(t, refreshed)
	// 拒绝后不再发请求，也从未带 force_override
	require.Len(t, redeemer.calls, 1)
	assert.False(t, redeemer.calls[0].Force)
	require.NotNil(t, res.Conflict)
	assert.Equal(t, "Basic", res.Conflict.SubscriptionName)
}

func TestResolver_ConflictConfirmed(t *testing.T) {
	redeemer := &fakeRedeemer{results: []error{conflictErr()}}
	asked := 0
	r := NewResolver(redeemer, confirmWith(true, &asked))

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeRedeemed, res.Outcome)
	assert.Equal(t, []topUpCall{
		{Key: "CODE", Force: false},
		{Key: "CODE", Force: true},
	}, redeemer.calls)
}

func TestResolver_ConfirmedRetryFailsWithoutLoop(t *testing.T) {
	redeemer := &fakeRedeemer{results: []error{conflictErr(), conflictErr()}}
	asked := 0
	r := NewResolver(redeemer, confirmWith(true, &asked))

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, asked)
	assert.Len(t, redeemer.calls, 2)
}

func TestResolver_OtherFailureNoRetry(t *testing.T) {
	redeemer := &fakeRedeemer{results: []error{&APIError{Message: "兑换码已被使用", Code: response.CodeDuplicateAction}}}
	asked := 0
	r := NewResolver(redeemer, confirmWith(true, &asked))

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "兑换码已被使用", res.Message)
	assert.Zero(t, asked)
	assert.Len(t, redeemer.calls, 1)
}

func TestResolver_ConfirmerError(t *testing.T) {
	redeemer := &fakeRedeemer{results: []error{conflictErr()}}
	r := NewResolver(redeemer, ConfirmerFunc(func(ctx context.Context, _ *dto.ConflictInfo) (bool, error) {
		return false, errors.New("stdin closed")
	}))

	res := r.Redeem(context.Background(), "CODE")
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Len(t, redeemer.calls, 1)
}

func TestResolver_OverHTTP_IdenticalResubmission(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []dto.TopUpRequest
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req dto.TopUpRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		bodies = append(bodies, req)
		mu.Unlock()

		if !req.ForceOverride {
			writeEnvelope(w, response.Response{
				Success: false,
				Code:    response.CodeSubscriptionConflict,
				Data:    dto.ConflictInfo{SubscriptionName: "Basic"},
			})
			return
		}
		writeEnvelope(w, response.Response{Success: true, Data: dto.TopUpResponse{Type: 2, Superseded: 1}})
	})

	var seen *dto.ConflictInfo
	r := NewResolver(client, ConfirmerFunc(func(ctx context.Context, c *dto.ConflictInfo) (bool, error) {
		seen = c
		return true, nil
	}))

	res := r.Redeem(context.Background(), "KEY-1")
	require.Equal(t, OutcomeRedeemed, res.Outcome)
	assert.Equal(t, 1, res.Response.Superseded)
	require.NotNil(t, seen)
	assert.Equal(t, "Basic", seen.SubscriptionName)
	assert.Equal(t, []dto.TopUpRequest{
		{Key: "KEY-1", ForceOverride: false},
		{Key: "KEY-1", ForceOverride: true},
	}, bodies)
}

func TestRedeemForm_Submit(t *testing.T) {
	t.Run("clears input on success", func(t *testing.T) {
		redeemer := &fakeRedeemer{}
		refreshed := 0
		r := NewResolver(redeemer, confirmWith(false, new(int)))
		r.OnSuccess = func(ctx context.Context) error {
			refreshed++
			return nil
		}
		form := NewRedeemForm(r)
		form.Code = "  CODE  "

		res := form.Submit(context.Background())
		assert.Equal(t, OutcomeRedeemed, res.Outcome)
		assert.Empty(t, form.Code)
		assert.Equal(t, 1, refreshed)
		assert.Equal(t, "CODE", redeemer.calls[0].Key)
	})

	t.Run("keeps input on cancel", func(t *testing.T) {
		redeemer := &fakeRedeemer{results: []error{conflictErr()}}
		form := NewRedeemForm(NewResolver(redeemer, confirmWith(false, new(int))))
		form.Code = "CODE"

		res := form.Submit(context.Background())
		assert.Equal(t, OutcomeCancelled, res.Outcome)
		assert.Equal(t, "CODE", form.Code)
	})

	t.Run("empty input sends nothing", func(t *testing.T) {
		redeemer := &fakeRedeemer{}
		form := NewRedeemForm(NewResolver(redeemer, confirmWith(true, new(int))))

		res := form.Submit(context.Background())
		assert.Equal(t, OutcomeFailed, res.Outcome)
		assert.Empty(t, redeemer.calls)
	})
}
