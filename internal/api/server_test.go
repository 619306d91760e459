// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Thermoquad/vedirect/pkg/vedirect"
	"github.com/rs/zerolog"
)

// newTestServer decodes a short block into fresh telemetry
func newTestServer(t *testing.T, outputs ...vedirect.Output) (*Server, *vedirect.Statistics) {
	t.Helper()
	tel := vedirect.NewTelemetry(outputs...)
	sinks := vedirect.NewSinks()
	if err := tel.Register(sinks); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	stats := vedirect.NewStatistics()
	d := vedirect.NewDecoder(sinks)
	for _, r := range []vedirect.Record{{Label: "V", Value: "12840"}, {Label: "CS", Value: "3"}} {
		stats.Update(r, vedirect.ValidateRecord(r))
		d.HandleRecord(r)
	}
	return NewServer(tel, stats, "Serial: /dev/ttyUSB0 @ 19200 baud", zerolog.Nop()), stats
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var h Health
	if err := json.NewDecoder(rec.Body).Decode(&h); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if h.Status != "ok" || h.Records != 2 || h.Session == "" {
		t.Errorf("Unexpected health: %+v", h)
	}
}

func TestServer_Telemetry(t *testing.T) {
	s, _ := newTestServer(t)

	rec := get(t, s, "/api/telemetry")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Unexpected content type %q", ct)
	}

	var snap vedirect.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	v, ok := snap.Lookup("charging_mode")
	if !ok || !v.Valid || v.Value != "Bulk" {
		t.Errorf("Unexpected charging_mode: %+v", v)
	}
}

func TestServer_TelemetryValue(t *testing.T) {
	s, _ := newTestServer(t, vedirect.OutputBatteryVoltage)

	tests := []struct {
		path   string
		status int
	}{
		{"/api/telemetry/battery_voltage", http.StatusOK},
		{"/api/telemetry/panel_power", http.StatusNotFound},
		{"/api/telemetry/bogus", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := get(t, s, tt.path)
			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
		})
	}

	var v vedirect.Value
	if err := json.NewDecoder(get(t, s, "/api/telemetry/battery_voltage").Body).Decode(&v); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v.Value != 12.84 || v.Unit != "V" {
		t.Errorf("Unexpected value: %+v", v)
	}
}

func TestServer_Outputs(t *testing.T) {
	s, _ := newTestServer(t, vedirect.OutputDeviceType, vedirect.OutputPanelPower)

	var body []map[string]string
	if err := json.NewDecoder(get(t, s, "/api/outputs").Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(body) != 2 || body[0]["key"] != "panel_power" || body[1]["kind"] != "text" {
		t.Errorf("Unexpected outputs: %v", body)
	}
}

func TestServer_Statistics(t *testing.T) {
	s, _ := newTestServer(t)

	var snap vedirect.StatisticsSnapshot
	if err := json.NewDecoder(get(t, s, "/api/statistics").Body).Decode(&snap); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if snap.TotalRecords != 2 || snap.ValidRecords != 2 {
		t.Errorf("Unexpected statistics: %+v", snap)
	}

	noStats := NewServer(vedirect.NewTelemetry(), nil, "", zerolog.Nop())
	if rec := get(t, noStats, "/api/statistics"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 without statistics, got %d", rec.Code)
	}
}

func TestServer_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := get(t, s, "/api/nothing"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestServer_RunShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
