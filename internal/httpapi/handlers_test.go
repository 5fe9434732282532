package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"harvestbid.org/internal/auction"
	"harvestbid.org/internal/auth"
	"harvestbid.org/internal/catalog"
	"harvestbid.org/internal/chat"
	"harvestbid.org/internal/directory"
	"harvestbid.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("HARVEST_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	crops := catalog.NewInMemory()
	messages := chat.NewInMemory()
	users := directory.NewInMemory()
	core := auction.NewService(auction.NewMemoryStore(crops, messages), crops, messages)

	api := New(ReadyProbe{}, "test", core, crops, users, stream.New(), nil)
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, headers)
}

// register creates a user and returns an auth header for them.
func (c *apiClient) register(username, email, role string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"username": username,
		"email":    email,
		"password": "hunter2hunter2",
		"role":     role,
		"contact":  "555-0142",
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("register %s: unexpected status %d", username, resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode register response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.Token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestAPIFullAuctionFlow(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.register("meera", "meera@example.com", "farmer")
	bidderA := api.register("arjun", "arjun@example.com", "bidder")
	bidderB := api.register("priya", "priya@example.com", "bidder")

	// Farmer lists a crop.
	resp := api.post("/v1/crops", map[string]any{
		"name":     "Basmati Rice",
		"type":     "Grain",
		"quantity": 500,
		"price":    "80.00",
		"location": "Karnal",
	}, farmer)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create crop: unexpected status %d", resp.StatusCode)
	}
	crop := decode[map[string]any](t, resp)
	cropID := crop["id"].(string)

	// First bid.
	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "100.00"}, bidderA)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first bid: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A lower bid is rejected with the current price attached.
	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "90.00"}, bidderB)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("low bid: expected 409, got %d", resp.StatusCode)
	}
	rejection := decode[map[string]any](t, resp)
	if rejection["current_price"].(float64) != 10000 {
		t.Fatalf("unexpected current_price: %v", rejection["current_price"])
	}

	// Outbid.
	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "150.00"}, bidderB)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("outbid: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Current bid reflects the outbid.
	resp = api.get("/v1/crops/"+cropID+"/bids/current", nil, bidderA)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current bid: unexpected status %d", resp.StatusCode)
	}
	current := decode[map[string]any](t, resp)
	if current["price"].(float64) != 15000 {
		t.Fatalf("unexpected current price: %v", current["price"])
	}

	// History holds both accepted bids, highest first.
	resp = api.get("/v1/crops/"+cropID+"/bids", nil, farmer)
	history := decode[map[string]any](t, resp)
	items := history["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 bids in history, got %d", len(items))
	}
	top := items[0].(map[string]any)
	if top["price"].(float64) != 15000 {
		t.Fatalf("history not price-descending: %v", top["price"])
	}

	// Only the listing farmer may close.
	resp = api.post("/v1/crops/"+cropID+"/close", nil, bidderA)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bidder close: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/crops/"+cropID+"/close", nil, farmer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("close: unexpected status %d", resp.StatusCode)
	}
	outcome := decode[map[string]any](t, resp)
	winnerID := outcome["winner_id"].(string)
	if outcome["price"].(float64) != 15000 {
		t.Fatalf("unexpected winning price: %v", outcome["price"])
	}

	// Re-close replays the recorded outcome.
	resp = api.post("/v1/crops/"+cropID+"/close", nil, farmer)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("re-close: unexpected status %d", resp.StatusCode)
	}
	replay := decode[map[string]any](t, resp)
	if replay["winner_id"] != winnerID || replay["decided_at"] != outcome["decided_at"] {
		t.Fatalf("re-close changed the outcome: %v vs %v", replay, outcome)
	}

	// Bids are refused after close.
	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "200.00"}, bidderA)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("bid after close: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Winner sees the crop in their wins.
	resp = api.get("/v1/wins", nil, bidderB)
	wins := decode[map[string]any](t, resp)
	winItems := wins["items"].([]any)
	if len(winItems) != 1 {
		t.Fatalf("expected 1 win, got %d", len(winItems))
	}
	win := winItems[0].(map[string]any)
	if win["crop_id"] != cropID || win["crop"] == nil {
		t.Fatalf("win missing crop snapshot: %v", win)
	}

	// Chat: farmer and winner are granted each other; the losing bidder is not.
	resp = api.get("/v1/crops/"+cropID+"/chat", nil, farmer)
	grant := decode[map[string]any](t, resp)
	if grant["counterpart_id"] != winnerID || grant["counterpart_name"] != "priya" {
		t.Fatalf("unexpected farmer grant: %v", grant)
	}

	resp = api.get("/v1/crops/"+cropID+"/chat", nil, bidderA)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("loser chat: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/crops/"+cropID+"/messages", map[string]any{"body": "When can I pick up?"}, bidderB)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send message: unexpected status %d", resp.StatusCode)
	}
	msg := decode[map[string]any](t, resp)
	if msg["receiver_name"] != "meera" {
		t.Fatalf("unexpected receiver: %v", msg)
	}

	resp = api.get("/v1/crops/"+cropID+"/messages", nil, farmer)
	msgs := decode[map[string]any](t, resp)
	if len(msgs["items"].([]any)) != 1 {
		t.Fatalf("expected 1 message, got %v", msgs["items"])
	}
}

func TestAPICropDeleteCascades(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.register("meera", "meera@example.com", "farmer")
	bidder := api.register("arjun", "arjun@example.com", "bidder")

	resp := api.post("/v1/crops", map[string]any{"name": "Wheat", "price": "50.00"}, farmer)
	crop := decode[map[string]any](t, resp)
	cropID := crop["id"].(string)

	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "60.00"}, bidder)
	resp.Body.Close()

	// Only the owner may delete.
	resp = api.do(http.MethodDelete, "/v1/crops/"+cropID, nil, bidder)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-owner delete: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.do(http.MethodDelete, "/v1/crops/"+cropID, nil, farmer)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: unexpected status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/crops/"+cropID, nil, farmer)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected crop gone, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/crops/"+cropID+"/bids", nil, farmer)
	history := decode[map[string]any](t, resp)
	if len(history["items"].([]any)) != 0 {
		t.Fatalf("expected empty history after cascade: %v", history["items"])
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/crops", map[string]any{"name": "Wheat"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	var errBody map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody["error"] == "" {
		t.Fatalf("expected error message")
	}
}

func TestAPIRoleChecks(t *testing.T) {
	api := newTestAPI(t)
	farmer := api.register("meera", "meera@example.com", "farmer")
	bidder := api.register("arjun", "arjun@example.com", "bidder")

	resp := api.post("/v1/crops", map[string]any{"name": "Wheat"}, bidder)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("bidder listing crop: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/crops", map[string]any{"name": "Wheat", "price": "50.00"}, farmer)
	crop := decode[map[string]any](t, resp)
	cropID := crop["id"].(string)

	resp = api.post("/v1/crops/"+cropID+"/bids", map[string]any{"price": "60.00"}, farmer)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("farmer bidding: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRegisterValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/register", map[string]any{
		"username": "x", "email": "not-an-email", "password": "hunter2hunter2", "role": "farmer",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad email: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/register", map[string]any{
		"username": "x", "email": "x@example.com", "password": "hunter2hunter2", "role": "broker",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	api.register("meera", "meera@example.com", "farmer")
	resp = api.post("/v1/auth/register", map[string]any{
		"username": "other", "email": "meera@example.com", "password": "hunter2hunter2", "role": "farmer",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLoginAndProfile(t *testing.T) {
	api := newTestAPI(t)
	api.register("meera", "meera@example.com", "farmer")

	resp := api.post("/v1/auth/login", map[string]any{
		"email": "meera@example.com", "password": "wrong-password",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/auth/login", map[string]any{
		"email": "meera@example.com", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: unexpected status %d", resp.StatusCode)
	}
	login := decode[tokenResponse](t, resp)
	header := map[string]string{"Authorization": "Bearer " + login.Token}

	resp = api.get("/v1/profile", nil, header)
	profile := decode[map[string]any](t, resp)
	if profile["username"] != "meera" {
		t.Fatalf("unexpected profile: %v", profile)
	}

	resp = api.do(http.MethodPut, "/v1/profile", map[string]any{"contact": "555-0199"}, header)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile update: unexpected status %d", resp.StatusCode)
	}
	updated := decode[map[string]any](t, resp)
	if updated["contact"] != "555-0199" {
		t.Fatalf("contact not updated: %v", updated)
	}
}
