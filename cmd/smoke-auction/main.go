// Command smoke-auction runs a full bid/close/chat scenario against a running
// API instance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

type client struct {
	base  string
	http  *http.Client
	token string
}

func (c *client) call(method, path string, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func register(base, username, role string, suffix int64) *client {
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}
	var resp struct {
		Token string `json:"token"`
	}
	code, err := c.call(http.MethodPost, "/v1/auth/register", map[string]any{
		"username": username,
		"email":    fmt.Sprintf("%s-%d@smoke.example.com", username, suffix),
		"password": "smoke-test-pass",
		"role":     role,
	}, &resp)
	if err != nil || code != http.StatusOK {
		log.Fatalf("register %s: code=%d err=%v", username, code, err)
	}
	c.token = resp.Token
	return c
}

func main() {
	base := os.Getenv("HARVEST_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	suffix := rand.New(rand.NewSource(time.Now().UnixNano())).Int63()

	farmer := register(base, "smoke-farmer", "farmer", suffix)
	bidderA := register(base, "smoke-bidder-a", "bidder", suffix)
	bidderB := register(base, "smoke-bidder-b", "bidder", suffix)

	var crop struct {
		ID string `json:"id"`
	}
	code, err := farmer.call(http.MethodPost, "/v1/crops", map[string]any{
		"name":  "Smoke Tomatoes",
		"type":  "Vegetable",
		"price": "75.00",
	}, &crop)
	if err != nil || code != http.StatusCreated {
		log.Fatalf("create crop: code=%d err=%v", code, err)
	}

	if code, err = bidderA.call(http.MethodPost, "/v1/crops/"+crop.ID+"/bids", map[string]any{"price": "100.00"}, nil); err != nil || code != http.StatusCreated {
		log.Fatalf("bid A: code=%d err=%v", code, err)
	}
	if code, err = bidderB.call(http.MethodPost, "/v1/crops/"+crop.ID+"/bids", map[string]any{"price": "90.00"}, nil); err != nil || code != http.StatusConflict {
		log.Fatalf("low bid must be rejected: code=%d err=%v", code, err)
	}
	if code, err = bidderB.call(http.MethodPost, "/v1/crops/"+crop.ID+"/bids", map[string]any{"price": "150.00"}, nil); err != nil || code != http.StatusCreated {
		log.Fatalf("bid B: code=%d err=%v", code, err)
	}

	var outcome struct {
		WinnerID string `json:"winner_id"`
		Price    int64  `json:"price"`
	}
	if code, err = farmer.call(http.MethodPost, "/v1/crops/"+crop.ID+"/close", nil, &outcome); err != nil || code != http.StatusOK {
		log.Fatalf("close: code=%d err=%v", code, err)
	}
	if outcome.Price != 15000 {
		log.Fatalf("unexpected winning price: %d", outcome.Price)
	}

	var replay struct {
		WinnerID string `json:"winner_id"`
	}
	if code, err = farmer.call(http.MethodPost, "/v1/crops/"+crop.ID+"/close", nil, &replay); err != nil || code != http.StatusOK {
		log.Fatalf("re-close: code=%d err=%v", code, err)
	}
	if replay.WinnerID != outcome.WinnerID {
		log.Fatalf("re-close changed winner: %s vs %s", replay.WinnerID, outcome.WinnerID)
	}

	if code, err = bidderA.call(http.MethodGet, "/v1/crops/"+crop.ID+"/chat", nil, nil); code != http.StatusForbidden {
		log.Fatalf("losing bidder must be denied chat: code=%d err=%v", code, err)
	}
	if code, err = bidderB.call(http.MethodPost, "/v1/crops/"+crop.ID+"/messages", map[string]any{"body": "smoke ping"}, nil); err != nil || code != http.StatusCreated {
		log.Fatalf("winner message: code=%d err=%v", code, err)
	}

	var wins struct {
		Items []struct {
			CropID string `json:"crop_id"`
		} `json:"items"`
	}
	if code, err = bidderB.call(http.MethodGet, "/v1/wins", nil, &wins); err != nil || code != http.StatusOK {
		log.Fatalf("wins: code=%d err=%v", code, err)
	}
	found := false
	for _, w := range wins.Items {
		if w.CropID == crop.ID {
			found = true
		}
	}
	if !found {
		log.Fatalf("won crop missing from register")
	}

	fmt.Printf("auction smoke test passed: crop=%s winner=%s\n", crop.ID, outcome.WinnerID)
}
