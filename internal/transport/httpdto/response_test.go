package httpdto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeRetryable(t *testing.T) {
	for _, c := range []ErrorCode{CodeRateLimited, CodeUnavailable, CodeProviderError, CodeUnhealthy} {
		assert.True(t, c.Retryable(), c)
	}
	for _, c := range []ErrorCode{CodeInvalidRequest, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict, CodeInternal} {
		assert.False(t, c.Retryable(), c)
	}
}

func TestErrorResponseJSON(t *testing.T) {
	b, err := json.Marshal(NewErrorResponse("provider rejected template", CodeProviderError).WithRequestID("req-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"provider rejected template","code":"PROVIDER_ERROR","retryable":true,"request_id":"req-1"}`, string(b))

	b, err = json.Marshal(NewSuccessResponse(map[string]int{"queued": 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"queued":2}}`, string(b))
}
