package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/crops":                     "/v1/crops",
		"/v1/crops/abc":                 "/v1/crops/:id",
		"/v1/crops/abc/bids":            "/v1/crops/:id/bids",
		"/v1/crops/abc/bids/current":    "/v1/crops/:id/bids/current",
		"/v1/crops/abc/close":           "/v1/crops/:id/close",
		"/v1/wins/abc":                  "/v1/wins/:id",
		"/v1/crops/abc/outcome?x=1":     "/v1/crops/:id/outcome",
		"/v1/auth/login":                "/v1/auth/login",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
