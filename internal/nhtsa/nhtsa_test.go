package nhtsa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func decodeBody(errorCode, mk, model, year, body string) string {
	return fmt.Sprintf(`{"Results":[
		{"Variable":"Error Code","Value":%q},
		{"Variable":"Make","Value":%q},
		{"Variable":"Model","Value":%q},
		{"Variable":"Model Year","Value":%q},
		{"Variable":"Body Class","Value":%q},
		{"Variable":"Trim","Value":null}
	]}`, errorCode, mk, model, year, body)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	return NewClient(cfg, nil)
}

func TestDecodeVINValid(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/DecodeVin/1HGCM82633A004352") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(decodeBody("0", "HONDA", "Accord", "2003", "Coupe")))
	}, Config{})

	v := c.DecodeVIN(context.Background(), "1HGCM82633A004352")
	if !v.Valid {
		t.Fatalf("expected valid verdict, got reason %q", v.Reason)
	}
	if v.Make != "HONDA" || v.Model != "Accord" || v.Year != 2003 || v.BodyClass != "Coupe" {
		t.Errorf("unexpected decode: %+v", v)
	}
}

func TestDecodeVINRejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "hard error code", body: decodeBody("5", "HONDA", "", "", "")},
		{name: "mixed codes", body: decodeBody("1,11", "HONDA", "", "", "")},
		{name: "no make", body: decodeBody("0", "", "", "", "")},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(tt.body))
		}, Config{})
		v := c.DecodeVIN(context.Background(), "1HGCM82633A004352")
		if v.Valid {
			t.Errorf("%s: expected rejection", tt.name)
		}
		if v.Reason == "" {
			t.Errorf("%s: expected a reason", tt.name)
		}
	}

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(decodeBody("1", "FORD", "F-150", "2018", "Pickup")))
	}, Config{})
	if v := c.DecodeVIN(context.Background(), "1FTEW1EP5JFA00001"); !v.Valid {
		t.Errorf("soft error code 1 should still decode, got %q", v.Reason)
	}
}

func TestDecodeVINTimeoutFailsClosed(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, Config{Timeout: 50 * time.Millisecond})

	v := c.DecodeVIN(context.Background(), "1HGCM82633A004352")
	if v.Valid {
		t.Fatal("VIN decode timeout must not be accepted")
	}
	if v.Reason != ReasonTimeout {
		t.Errorf("Reason = %q, want %q", v.Reason, ReasonTimeout)
	}
}

func TestDecodeVINAdvisoryPolicy(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, Config{VINPolicy: Advisory})

	v := c.DecodeVIN(context.Background(), "1HGCM82633A004352")
	if !v.Valid || v.Warning == "" {
		t.Errorf("advisory VIN policy should accept with warning, got %+v", v)
	}
}

func TestValidateYearMake(t *testing.T) {
	t.Parallel()

	var carCalls, allCalls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/GetMakesForVehicleType/car"):
			carCalls.Add(1)
			_, _ = w.Write([]byte(`{"Results":[{"MakeName":"TOYOTA"},{"MakeName":"Ford "}]}`))
		case r.URL.Path == "/GetAllMakes":
			allCalls.Add(1)
			_, _ = w.Write([]byte(`{"Results":[{"Make_Name":"Harley-Davidson"}]}`))
		default:
			http.NotFound(w, r)
		}
	}, Config{})
	ctx := context.Background()

	if v := c.ValidateYearMake(ctx, 2020, "toyota"); !v.Valid || v.Warning != "" {
		t.Errorf("toyota: %+v", v)
	}
	if v := c.ValidateYearMake(ctx, 2020, "ford"); !v.Valid {
		t.Errorf("ford: %+v", v)
	}
	if v := c.ValidateYearMake(ctx, 2015, "harley-davidson"); !v.Valid {
		t.Errorf("harley-davidson should match the full list: %+v", v)
	}
	v := c.ValidateYearMake(ctx, 2015, "Toyotaa")
	if v.Valid {
		t.Error("misspelled make should be rejected")
	}
	if !strings.Contains(v.Reason, "Toyotaa") {
		t.Errorf("reason should name the make: %q", v.Reason)
	}

	if got := carCalls.Load(); got != 1 {
		t.Errorf("car make list fetched %d times, want 1 (cached)", got)
	}
	if got := allCalls.Load(); got != 1 {
		t.Errorf("all make list fetched %d times, want 1 (cached)", got)
	}
}

func TestValidateYearMakeFailsOpen(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, Config{Timeout: 50 * time.Millisecond})

	v := c.ValidateYearMake(context.Background(), 2020, "Toyota")
	if !v.Valid {
		t.Fatalf("make timeout should fail open, got reason %q", v.Reason)
	}
	if v.Warning == "" {
		t.Error("expected a warning on the degraded verdict")
	}
}

func TestValidateYearMakeCachesExpire(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"Results":[{"MakeName":"TOYOTA"}]}`))
	}, Config{MakesTTL: time.Millisecond})

	c.ValidateYearMake(context.Background(), 2020, "Toyota")
	time.Sleep(5 * time.Millisecond)
	c.ValidateYearMake(context.Background(), 2020, "Toyota")

	if got := calls.Load(); got != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", got)
	}
}
