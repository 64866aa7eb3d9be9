package grant_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/iapkit/pkg/grant"
)

func TestResponseDecoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
		fields  int
	}{
		{"success", `{"coins":5}`, "", 1},
		{"string error", `{"error":"duplicate_order","id":1}`, "duplicate_order", 1},
		{"null error", `{"error":null}`, "", 0},
		{"false error", `{"error":false}`, "", 0},
		{"object error", `{"error":{"code":3}}`, `{"code":3}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r grant.Response
			require.NoError(t, json.Unmarshal([]byte(tt.body), &r))
			assert.Equal(t, tt.wantErr, r.Error)
			assert.Len(t, r.Fields, tt.fields)
		})
	}

	var r grant.Response
	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &r))
}

func TestResponsePassthrough(t *testing.T) {
	t.Parallel()

	body := `{"error":"pack_not_found","grant":{"coins":100,"bonus":[1,2]},"server_time":1700000000}`
	var r grant.Response
	require.NoError(t, json.Unmarshal([]byte(body), &r))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(out))

	var nilResp *grant.Response
	assert.False(t, nilResp.Failed())
	assert.False(t, nilResp.Field("x", new(int)))
}
