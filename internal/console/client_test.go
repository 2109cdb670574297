package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/subhub/internal/model/dto"
	"github.com/qs3c/subhub/internal/pkg/response"
)

func writeEnvelope(w http.ResponseWriter, resp response.Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithHTTP(srv.URL+"/", "test-token", srv.Client())
}

func TestClient_SuccessDecodesData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/subscription/user/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("p"))
		assert.Equal(t, "5", r.URL.Query().Get("page_size"))
		writeEnvelope(w, response.Response{
			Success: true,
			Data: response.PageData{
				Items: []map[string]interface{}{
					{"id": 7, "status": 1, "daily_quota_used": 100, "subscription_info": map[string]interface{}{"name": "Pro"}},
				},
				Total:    11,
				Page:     2,
				PageSize: 5,
			},
		})
	})

	page, err := client.ListSubscriptions(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(7), page.Items[0].ID)
	assert.Equal(t, int64(100), page.Items[0].DailyQuotaUsed)
	require.NotNil(t, page.Items[0].SubscriptionInfo)
	assert.Equal(t, "Pro", page.Items[0].SubscriptionInfo.Name)
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, response.Response{Success: false, Message: "兑换码不存在", Code: response.CodeResourceNotFound})
	})

	_, err := client.TopUp(context.Background(), "nope", false)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "兑换码不存在", apiErr.Message)
	assert.Equal(t, response.CodeResourceNotFound, apiErr.Code)
	assert.False(t, errors.Is(err, ErrSubscriptionConflict))
}

func TestClient_ConflictMatchesSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, response.Response{
			Success: false,
			Message: "已有生效中的订阅",
			Code:    response.CodeSubscriptionConflict,
			Data:    dto.ConflictInfo{UserSubscriptionID: 3, SubscriptionName: "Basic"},
		})
	})

	_, err := client.TopUp(context.Background(), "abc", false)
	require.ErrorIs(t, err, ErrSubscriptionConflict)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	var info dto.ConflictInfo
	require.NoError(t, apiErr.DecodeData(&info))
	assert.Equal(t, int64(3), info.UserSubscriptionID)
	assert.Equal(t, "Basic", info.SubscriptionName)
}

func TestClient_TransportErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.Profile(context.Background())
		var tErr *TransportError
		assert.True(t, errors.As(err, &tErr))
	})

	t.Run("invalid body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		})
		_, err := client.Profile(context.Background())
		var tErr *TransportError
		assert.True(t, errors.As(err, &tErr))
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		client := NewClientWithHTTP(url, "", http.DefaultClient)
		_, err := client.Profile(context.Background())
		var tErr *TransportError
		assert.True(t, errors.As(err, &tErr))
	})
}

func TestClient_BreakerOpensOnTransportFailures(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Profile(ctx)
		require.Error(t, err)
	}

	_, err := client.Profile(ctx)
	var tErr *TransportError
	require.True(t, errors.As(err, &tErr))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClient_APIErrorsDoNotTripBreaker(t *testing.T) {
	var hits int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, response.Response{Success: false, Message: "参数错误", Code: response.CodeParamError})
	})

	for i := 0; i < 5; i++ {
		_, err := client.Profile(context.Background())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&hits))
}

func TestClient_GetOption_EmptyWhenAbsent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/option/SubscriptionPageHTML", r.URL.Path)
		writeEnvelope(w, response.Response{Success: true, Data: ""})
	})

	v, err := client.GetOption(context.Background(), "SubscriptionPageHTML")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestClient_ActiveSubscription_Null(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, response.Response{Success: true, Data: nil})
	})

	us, err := client.ActiveSubscription(context.Background())
	require.NoError(t, err)
	assert.Nil(t, us)
}

func TestClient_LogsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "5", q.Get("type"))
		assert.Equal(t, "alice", q.Get("username"))
		assert.Equal(t, "3", q.Get("channel"))
		assert.False(t, q.Has("model_name"))
		assert.False(t, q.Has("status_code"))
		writeEnvelope(w, response.Response{Success: true, Data: response.PageData{Items: []interface{}{}, Page: 1, PageSize: 10}})
	})

	page, err := client.Logs(context.Background(), dto.LogQuery{Type: 5, Username: "alice", Channel: 3}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestClient_BindChannelBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/subscription/exclusive/user/9/channel", r.URL.Path)
		var req dto.BindChannelRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(4), req.ChannelID)
		writeEnvelope(w, response.Response{Success: true, Message: "绑定成功"})
	})

	require.NoError(t, client.BindChannel(context.Background(), 9, 4))
}

func TestClient_StickySessions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/channel/3/sticky_sessions":
			writeEnvelope(w, response.Response{Success: true, Data: map[string]interface{}{
				"channel_id": 3, "enabled": true, "session_count": 1, "ttl_minutes": 60,
				"sessions": []map[string]interface{}{{"session_hash": "abc", "channel_id": 3, "ttl": 120}},
			}})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/channel/3/sticky_sessions/a b":
			writeEnvelope(w, response.Response{Success: true, Message: "已释放"})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/channel/3/sticky_sessions":
			writeEnvelope(w, response.Response{Success: true, Data: dto.StickyReleaseResponse{Released: 4}})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			writeEnvelope(w, response.Response{Success: false, Message: "not found"})
		}
	})
	ctx := context.Background()

	info, err := client.StickySessions(ctx, 3)
	require.NoError(t, err)
	assert.True(t, info.Enabled)
	require.Len(t, info.Sessions, 1)
	assert.Equal(t, "abc", info.Sessions[0].SessionHash)
	assert.Equal(t, int64(120), info.Sessions[0].TTL)

	require.NoError(t, client.ReleaseStickySession(ctx, 3, "a b"))

	n, err := client.ReleaseAllStickySessions(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
