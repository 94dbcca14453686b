package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mintgate/core"
	"mintgate/core/genesis"
	"mintgate/core/state"
	"mintgate/crypto"
	"mintgate/storage"
)

const testToken = "test-rpc-token"

type serverFixture struct {
	server  *httptest.Server
	node    *core.Node
	buyer   crypto.Address
	creator crypto.Address
}

func newServerFixture(t *testing.T, buyerFunds int64, ratePerMinute int) *serverFixture {
	t.Helper()
	t.Setenv("MINTGATE_RPC_TOKEN", testToken)

	db := storage.NewMemDB()
	t.Cleanup(db.Close)

	newAccount := func() crypto.Address {
		key, err := crypto.GeneratePrivateKey()
		require.NoError(t, err)
		return key.PubKey().Address()
	}
	f := &serverFixture{buyer: newAccount(), creator: newAccount()}

	spec := genesis.Default()
	spec.Alloc = map[string]map[string]string{
		f.buyer.String(): {"GATE": big.NewInt(buyerFunds).String()},
	}
	_, err := genesis.Apply(spec, state.NewStore(db), 1_700_000_000)
	require.NoError(t, err)

	f.node = core.NewNode(db, nil, nil)
	srv := httptest.NewServer(NewServer(f.node, ratePerMinute).Handler())
	t.Cleanup(srv.Close)
	f.server = srv
	return f
}

func (f *serverFixture) call(t *testing.T, token, method string, params interface{}) (*http.Response, RPCResponse) {
	t.Helper()
	payload := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		payload["params"] = []interface{}{params}
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.server.URL, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func resultField(t *testing.T, resp RPCResponse, field string) string {
	t.Helper()
	obj, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result is not an object: %+v", resp.Result)
	value, ok := obj[field].(string)
	require.True(t, ok, "field %q missing in %+v", field, obj)
	return value
}

const testContentID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestMutationsRequireAuth(t *testing.T) {
	f := newServerFixture(t, 0, 0)

	resp, decoded := f.call(t, "", "escrow_open", map[string]interface{}{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)

	resp, decoded = f.call(t, "wrong-token", "escrow_open", map[string]interface{}{})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, codeUnauthorized, decoded.Error.Code)
}

func TestUnknownMethod(t *testing.T) {
	f := newServerFixture(t, 0, 0)
	resp, decoded := f.call(t, "", "escrow_unknown", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, codeMethodNotFound, decoded.Error.Code)
}

func TestPurchaseFlowOverRPC(t *testing.T) {
	f := newServerFixture(t, 1_000_000_000, 0)

	resp, decoded := f.call(t, testToken, "access_initialize", map[string]interface{}{
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	resp, decoded = f.call(t, testToken, "split_configure", map[string]interface{}{
		"creator":          f.creator.String(),
		"contentId":        testContentID,
		"seed":             1,
		"platformFeeBps":   200,
		"platformTreasury": f.creator.String(),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	resp, decoded = f.call(t, "", "addressing_derive", map[string]interface{}{
		"buyer":     f.buyer.String(),
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	derivedEscrow := resultField(t, decoded, "escrow")

	resp, decoded = f.call(t, testToken, "escrow_open", map[string]interface{}{
		"buyer":     f.buyer.String(),
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
		"price":     "1000000000",
		"asset":     "GATE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	require.Equal(t, derivedEscrow, resultField(t, decoded, "address"))
	require.Equal(t, "initialized", resultField(t, decoded, "status"))

	resp, decoded = f.call(t, testToken, "settlement_buyAndMint", map[string]interface{}{
		"escrow": derivedEscrow,
		"buyer":  f.buyer.String(),
		"amount": "1000000000",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)
	require.NotEmpty(t, resultField(t, decoded, "txId"))

	resp, decoded = f.call(t, "", "escrow_get", map[string]interface{}{"escrow": derivedEscrow})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "completed", resultField(t, decoded, "status"))

	resp, decoded = f.call(t, "", "access_hasCredential", map[string]interface{}{
		"buyer":     f.buyer.String(),
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	obj, ok := decoded.Result.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, obj["hasCredential"])

	resp, decoded = f.call(t, "", "balance_get", map[string]interface{}{
		"account": f.buyer.String(),
		"asset":   "GATE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "0", resultField(t, decoded, "balance"))
}

func TestConflictMapping(t *testing.T) {
	f := newServerFixture(t, 0, 0)
	params := map[string]interface{}{
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
	}
	resp, decoded := f.call(t, testToken, "access_initialize", params)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, decoded.Error)

	resp, decoded = f.call(t, testToken, "access_initialize", params)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, codeConflict, decoded.Error.Code)
}

func TestValidationErrors(t *testing.T) {
	f := newServerFixture(t, 0, 0)

	resp, decoded := f.call(t, testToken, "escrow_open", map[string]interface{}{
		"buyer":     f.buyer.String(),
		"creator":   f.creator.String(),
		"contentId": "abcd",
		"seed":      1,
		"price":     "100",
		"asset":     "GATE",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)

	resp, decoded = f.call(t, testToken, "escrow_open", map[string]interface{}{
		"buyer":     f.buyer.String(),
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
		"price":     "-5",
		"asset":     "GATE",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, codeInvalidParams, decoded.Error.Code)
}

func TestEscrowGetNotFound(t *testing.T) {
	f := newServerFixture(t, 0, 0)
	resp, decoded := f.call(t, "", "escrow_get", map[string]interface{}{
		"escrow": fmt.Sprintf("%064x", 1),
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, codeNotFound, decoded.Error.Code)
}

func TestRateLimitAppliesToMutations(t *testing.T) {
	f := newServerFixture(t, 0, 2)
	params := map[string]interface{}{
		"creator":   f.creator.String(),
		"contentId": testContentID,
		"seed":      1,
	}
	for i := 0; i < 2; i++ {
		resp, _ := f.call(t, testToken, "access_initialize", params)
		require.NotEqual(t, http.StatusTooManyRequests, resp.StatusCode)
	}
	resp, decoded := f.call(t, testToken, "access_initialize", params)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, codeRateLimited, decoded.Error.Code)

	// Reads stay unthrottled.
	resp, _ = f.call(t, "", "asset_list", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
