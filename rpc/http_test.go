package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bollar/config"
	"bollar/core/statetx"
	"bollar/core/types"
	"bollar/native/cdp"
	"bollar/native/oracle"
	"bollar/rpc/modules"
	"bollar/storage"
)

func testDeposit() map[string]interface{} {
	return map[string]interface{}{
		"txHash":        "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
		"address":       "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		"confirmations": 6,
		"observedAt":    time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
	}
}

type testEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg, err := config.Load(t.TempDir() + "/config.toml")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	registry := cdp.NewRegistry(storage.NewMemDB())
	engine := cdp.NewEngine(cfg.Risk)
	engine.SetState(registry)
	priceOracle := oracle.New(oracle.Config{
		MinConfidencePct: cfg.Oracle.MinConfidencePct,
		MaxChangePct:     cfg.Oracle.MaxChangePct,
		TTL:              cfg.Oracle.TTL(),
	})
	txmgr := statetx.NewManager(registry, cfg.StateTx.HistoryCap)
	module := modules.NewCDPModule(engine, registry, priceOracle, txmgr)

	server := httptest.NewServer(NewServer(module, nil).Router())
	t.Cleanup(server.Close)
	return server
}

func call(t *testing.T, server *httptest.Server, method string, params interface{}) (*testEnvelope, int) {
	t.Helper()
	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
	}
	if params != nil {
		req["params"] = []interface{}{params}
	} else {
		req["params"] = []interface{}{}
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(server.URL+"/rpc", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	envelope := new(testEnvelope)
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return envelope, resp.StatusCode
}

func mustResult(t *testing.T, envelope *testEnvelope, status int, out interface{}) {
	t.Helper()
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d, error: %+v", status, envelope.Error)
	}
	if envelope.Error != nil {
		t.Fatalf("unexpected error: %+v", envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			t.Fatalf("decode result: %v", err)
		}
	}
}

func TestRPCLifecycle(t *testing.T) {
	server := newTestServer(t)

	envelope, status := call(t, server, "oracle_update", map[string]interface{}{
		"priceCents":    65_000_000,
		"source":        "manual",
		"confidencePct": 95,
	})
	mustResult(t, envelope, status, nil)

	// A deposit below the confirmation floor never reaches the engine.
	envelope, status = call(t, server, "cdp_create", map[string]interface{}{
		"owner":              "alice",
		"collateralSatoshis": 1_000_000,
		"deposit": map[string]interface{}{
			"txHash":        "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b",
			"address":       "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
			"confirmations": 3,
			"observedAt":    time.Now().UTC().Format(time.RFC3339),
		},
	})
	if status != http.StatusUnprocessableEntity || envelope.Error == nil {
		t.Fatalf("expected shallow deposit rejection, got status %d", status)
	}

	var created types.CDP
	envelope, status = call(t, server, "cdp_create", map[string]interface{}{
		"owner":              "alice",
		"collateralSatoshis": 1_000_000,
		"deposit":            testDeposit(),
	})
	mustResult(t, envelope, status, &created)
	if created.ID != 1 || created.State != types.CDPStateActive {
		t.Fatalf("unexpected position: %+v", created)
	}

	var minted types.MintPreview
	envelope, status = call(t, server, "cdp_mint", map[string]interface{}{
		"owner":       "alice",
		"cdpId":       created.ID,
		"amountCents": 500_000,
	})
	mustResult(t, envelope, status, &minted)
	if minted.NewTotalMintedCents != 500_000 {
		t.Fatalf("unexpected mint result: %+v", minted)
	}

	var fetched types.CDP
	envelope, status = call(t, server, "cdp_get", map[string]interface{}{"cdpId": created.ID})
	mustResult(t, envelope, status, &fetched)
	if fetched.MintedCents != 500_000 {
		t.Fatalf("mint not persisted: %+v", fetched)
	}

	var positions []types.CDP
	envelope, status = call(t, server, "cdp_list", map[string]interface{}{"owner": "alice"})
	mustResult(t, envelope, status, &positions)
	if len(positions) != 1 {
		t.Fatalf("expected one position, got %d", len(positions))
	}

	var health []types.PositionHealth
	envelope, status = call(t, server, "cdp_scan", nil)
	mustResult(t, envelope, status, &health)
	if len(health) != 1 || health[0].Eligible {
		t.Fatalf("unexpected scan report: %+v", health)
	}

	// Healthy position: liquidation must be rejected with the ratio report.
	envelope, status = call(t, server, "cdp_liquidate", map[string]interface{}{"cdpId": created.ID})
	if status != http.StatusUnprocessableEntity || envelope.Error == nil {
		t.Fatalf("expected rejection, got status %d error %+v", status, envelope.Error)
	}

	// Wrong repayment is rejected before any state change.
	envelope, status = call(t, server, "cdp_close", map[string]interface{}{
		"owner":          "alice",
		"cdpId":          created.ID,
		"repaymentCents": 1,
	})
	if status != http.StatusUnprocessableEntity || envelope.Error == nil {
		t.Fatalf("expected repayment rejection, got status %d", status)
	}

	var closed types.ClosurePreview
	envelope, status = call(t, server, "cdp_close", map[string]interface{}{
		"owner":          "alice",
		"cdpId":          created.ID,
		"repaymentCents": 500_000,
	})
	mustResult(t, envelope, status, &closed)
	if closed.RedemptionSatoshis != 990_000 || closed.ClosureFeeSatoshis != 10_000 {
		t.Fatalf("unexpected closure split: %+v", closed)
	}

	var history []types.StateTransaction
	envelope, status = call(t, server, "statetx_history", nil)
	mustResult(t, envelope, status, &history)
	// create, mint, and the successful close committed; the rejected
	// liquidation and mismatched repayment rolled back.
	var committed, rolledBack int
	for _, tx := range history {
		switch tx.Status {
		case types.TransactionStatusCommitted:
			committed++
		case types.TransactionStatusRolledBack:
			rolledBack++
		}
	}
	if committed != 3 || rolledBack != 2 {
		t.Fatalf("expected 3 committed and 2 rolled back, got %d/%d", committed, rolledBack)
	}

	var fees types.FeeAccrual
	envelope, status = call(t, server, "protocol_fees", nil)
	mustResult(t, envelope, status, &fees)
	if fees.ClosureFeeSatoshis != 10_000 {
		t.Fatalf("closure fee not accrued: %+v", fees)
	}
}

func TestRPCRequiresPrice(t *testing.T) {
	server := newTestServer(t)

	envelope, status := call(t, server, "cdp_create", map[string]interface{}{
		"owner":              "alice",
		"collateralSatoshis": 1_000_000,
		"deposit":            testDeposit(),
	})
	if status != http.StatusUnprocessableEntity || envelope.Error == nil {
		t.Fatalf("expected oracle failure before first update, got status %d", status)
	}
}

func TestRPCValidatePSBT(t *testing.T) {
	server := newTestServer(t)

	unsigned := map[string]interface{}{
		"inputs":  []map[string]interface{}{{"utxoRef": "4a5e1e4b:0", "valueSats": 1_000_000}},
		"outputs": []map[string]interface{}{{"address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", "valueSats": 995_000}},
	}
	envelope, status := call(t, server, "psbt_validate", map[string]interface{}{
		"unsigned": unsigned,
		"signed":   unsigned,
	})
	var result map[string]bool
	mustResult(t, envelope, status, &result)
	if !result["valid"] {
		t.Fatalf("expected valid summary, got %+v", result)
	}

	overpaying := map[string]interface{}{
		"inputs":  []map[string]interface{}{{"utxoRef": "4a5e1e4b:0", "valueSats": 1_000_000}},
		"outputs": []map[string]interface{}{{"address": "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", "valueSats": 900_000}},
	}
	envelope, status = call(t, server, "psbt_validate", map[string]interface{}{
		"unsigned": unsigned,
		"signed":   overpaying,
	})
	if status != http.StatusUnprocessableEntity || envelope.Error == nil {
		t.Fatalf("expected fee rejection, got status %d", status)
	}
}

func TestRPCSystemPause(t *testing.T) {
	server := newTestServer(t)

	envelope, status := call(t, server, "oracle_update", map[string]interface{}{
		"priceCents":    65_000_000,
		"source":        "manual",
		"confidencePct": 95,
	})
	mustResult(t, envelope, status, nil)

	var paused map[string]bool
	envelope, status = call(t, server, "system_pause", nil)
	mustResult(t, envelope, status, &paused)
	if !paused["paused"] {
		t.Fatalf("expected paused state, got %+v", paused)
	}

	envelope, status = call(t, server, "cdp_create", map[string]interface{}{
		"owner":              "alice",
		"collateralSatoshis": 1_000_000,
		"deposit":            testDeposit(),
	})
	if status != http.StatusServiceUnavailable || envelope.Error == nil {
		t.Fatalf("expected 503 while paused, got status %d error %+v", status, envelope.Error)
	}

	envelope, status = call(t, server, "system_resume", nil)
	mustResult(t, envelope, status, &paused)
	if paused["paused"] {
		t.Fatalf("expected resumed state, got %+v", paused)
	}

	var created types.CDP
	envelope, status = call(t, server, "cdp_create", map[string]interface{}{
		"owner":              "alice",
		"collateralSatoshis": 1_000_000,
		"deposit":            testDeposit(),
	})
	mustResult(t, envelope, status, &created)
	if created.State != types.CDPStateActive {
		t.Fatalf("unexpected position after resume: %+v", created)
	}
}

func TestRPCNotFound(t *testing.T) {
	server := newTestServer(t)

	envelope, status := call(t, server, "cdp_get", map[string]interface{}{"cdpId": 42})
	if status != http.StatusNotFound || envelope.Error == nil {
		t.Fatalf("expected not found, got status %d", status)
	}
}

func TestRPCEnvelopeValidation(t *testing.T) {
	server := newTestServer(t)

	resp, err := http.Post(server.URL+"/rpc", "application/json",
		bytes.NewReader([]byte(`{"jsonrpc":"1.0","id":1,"method":"cdp_scan","params":[]}`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong version, got %d", resp.StatusCode)
	}

	resp, err = http.Post(server.URL+"/rpc", "application/json", bytes.NewReader([]byte(`{not json`)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	envelope := new(testEnvelope)
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error == nil || envelope.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", envelope.Error)
	}

	envelope, status := call(t, server, "no_such_method", nil)
	if status != http.StatusNotFound || envelope.Error == nil || envelope.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got status %d error %+v", status, envelope.Error)
	}
}

func TestRPCHealthz(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}
