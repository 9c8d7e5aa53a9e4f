package provider

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlimtalkServer(t *testing.T, handler http.HandlerFunc) *AlimtalkClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAlimtalkClient(AlimtalkConfig{
		BaseURL:   srv.URL,
		AppKey:    "app-key",
		SecretKey: "secret",
		SenderKey: "sender-key",
		Timeout:   500 * time.Millisecond,
	}, nil)
}

func TestAlimtalkSend_Success(t *testing.T) {
	var got alimtalkSendRequest
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/alimtalk/v2.3/appkeys/app-key/raw-messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Secret-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{
			"header": {"isSuccessful": true, "resultCode": 0, "resultMessage": "success"},
			"message": {"requestId": "req-1", "sendResults": [{"recipientNo": "01012345678", "resultCode": 0, "resultMessage": "success"}]}
		}`))
	})

	res, err := client.Send(context.Background(), Message{
		Recipient:   "01012345678",
		TemplateRef: "WELCOME_01",
		Content:     "Hello Kim",
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "0", res.Code)
	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "sender-key", got.SenderKey)
	assert.Equal(t, "WELCOME_01", got.TemplateCode)
	require.Len(t, got.RecipientList, 1)
	assert.Equal(t, "Hello Kim", got.RecipientList[0].Content)
}

func TestAlimtalkSend_ProviderFailureIsNotAnError(t *testing.T) {
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"header": {"isSuccessful": false, "resultCode": -1006, "resultMessage": "Invalid template"}}`))
	})

	res, err := client.Send(context.Background(), Message{Recipient: "01012345678", TemplateRef: "X"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "-1006", res.Code)
	assert.Equal(t, "Invalid template", res.Message)
}

func TestAlimtalkSend_RecipientFailureInsideSuccessfulEnvelope(t *testing.T) {
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"header": {"isSuccessful": true, "resultCode": 0, "resultMessage": "success"},
			"message": {"requestId": "req-2", "sendResults": [{"recipientNo": "010", "resultCode": -1021, "resultMessage": "invalid recipient"}]}
		}`))
	})

	res, err := client.Send(context.Background(), Message{Recipient: "010"})
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Equal(t, "-1021", res.Code)
}

func TestAlimtalkSend_TransportFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non json body": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`<html>bad gateway</html>`))
		},
		"missing header": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"message": {}}`))
		},
		"timeout": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := newAlimtalkServer(t, handler)
			_, err := client.Send(context.Background(), Message{Recipient: "010"})
			assert.ErrorIs(t, err, ErrTransport)
		})
	}
}

func TestAlimtalkListTemplates_Pagination(t *testing.T) {
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alimtalk/v2.3/appkeys/app-key/senders/sender-key/templates", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("pageNum"))
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		_, _ = w.Write([]byte(`{
			"header": {"isSuccessful": true, "resultCode": 0, "resultMessage": "success"},
			"templateListResponse": {"templates": [{"templateCode": "T2", "templateName": "Second", "templateContent": "Hi ##NAME##", "status": "TSC03"}], "totalCount": 2}
		}`))
	})

	res, err := client.ListTemplates(context.Background(), Page{PageNum: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "T2", res.Items[0].Code)
}

func TestAlimtalkListCategories_FlattensAndPages(t *testing.T) {
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"header": {"isSuccessful": true, "resultCode": 0, "resultMessage": "success"},
			"categories": [
				{"name": "Membership", "subCategories": [{"code": "001001", "name": "Join"}, {"code": "001002", "name": "Leave"}]},
				{"name": "Order", "subCategories": [{"code": "002001", "name": "Paid"}]}
			]
		}`))
	})

	res, err := client.ListCategories(context.Background(), Page{PageNum: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	assert.Equal(t, []Category{{Code: "002001", Name: "Order / Paid"}}, res.Items)
}

func TestPaginate_OutOfRangePages(t *testing.T) {
	all := []Category{{Code: "1"}, {Code: "2"}, {Code: "3"}}

	for name, page := range map[string]Page{
		"past the end":    {PageNum: 3, PageSize: 2},
		"overflowing":     {PageNum: math.MaxInt / 100, PageSize: 1000},
		"max page number": {PageNum: math.MaxInt, PageSize: 1},
	} {
		res := paginate(all, page)
		assert.Empty(t, res.Items, name)
		assert.Equal(t, 3, res.TotalCount, name)
	}

	assert.Equal(t, []Category{{Code: "3"}}, paginate(all, Page{PageNum: 2, PageSize: 2}).Items)
	assert.Equal(t, all, paginate(all, Page{}).Items)
}

func TestAlimtalkListSenders_ProviderErrorIsReturned(t *testing.T) {
	client := newAlimtalkServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"header": {"isSuccessful": false, "resultCode": -1000, "resultMessage": "Invalid appkey"}}`))
	})

	_, err := client.ListSenders(context.Background(), Page{})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "-1000", perr.Code)
}
