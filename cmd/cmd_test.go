// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Thermoquad/vedirect/internal/logging"
	"github.com/Thermoquad/vedirect/pkg/vedirect"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.bug.st/serial/enumerator"
)

// ============================================================
// Test Helpers
// ============================================================

func init() {
	logger = &logging.Logger{Logger: zerolog.Nop()}
}

// nopConn is a Connection that never delivers data
type nopConn struct {
	closed *int
}

func (c nopConn) Read(p []byte) (int, error) { return 0, ErrConnectionClosed }
func (c nopConn) Close() error {
	if c.closed != nil {
		*c.closed++
	}
	return nil
}

// pollAll feeds s into tok in a single poll
func pollAll(t *testing.T, tok *vedirect.Tokenizer, s string) {
	t.Helper()
	src := vedirect.NewBufferedSource(0)
	src.Write([]byte(s))
	if _, err := tok.Poll(src, time.Now()); err != nil {
		t.Fatalf("Poll error: %v", err)
	}
}

// ============================================================
// Formatting
// ============================================================

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0 seconds"},
		{500 * time.Millisecond, "0 seconds"},
		{time.Second, "1 second"},
		{2 * time.Second, "2 seconds"},
		{2 * time.Hour, "2 hours"},
		{61 * time.Second, "1 minute and 1 second"},
		{time.Hour + time.Minute + time.Second, "1 hour, 1 minute, and 1 second"},
		{25 * time.Hour, "1 day and 1 hour"},
		{3*24*time.Hour + 5*time.Minute, "3 days and 5 minutes"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatUptime(tt.in); got != tt.want {
				t.Errorf("formatUptime(%s) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

// ============================================================
// Synchronization
// ============================================================

func TestSyncTracker(t *testing.T) {
	var s syncTracker

	if s.record() || s.record() {
		t.Error("Records before the first block boundary should not be reported")
	}
	if !s.checksum() {
		t.Error("First checksum should synchronize")
	}
	if s.checksum() {
		t.Error("Second checksum should not report synchronization again")
	}
	if !s.record() {
		t.Error("Records after synchronization should be reported")
	}
	if s.skipped != 2 {
		t.Errorf("Expected 2 skipped records, got %d", s.skipped)
	}
}

func TestBlockCollector(t *testing.T) {
	c := newBlockCollector()
	tok := vedirect.NewTokenizer(c, vedirect.WithChecksumHandler(c.checksum))

	// Joined mid-block: the tail before the first checksum is skipped
	pollAll(t, tok, "I\t-120\r\nChecksum\t\x07")
	select {
	case <-c.done:
		t.Fatal("A block cut at the start should not complete the test")
	default:
	}

	pollAll(t, tok, "\r\nPID\t0xA053\r\nV\t12800\r\nChecksum\t\x42")

	select {
	case records := <-c.done:
		if len(records) != 2 {
			t.Fatalf("Expected 2 records, got %d", len(records))
		}
		if records[0].Label != "PID" || records[1].Value != "12800" {
			t.Errorf("Unexpected records: %+v", records)
		}
	default:
		t.Fatal("Expected a complete block")
	}

	if c.skipped != 1 {
		t.Errorf("Expected 1 skipped record, got %d", c.skipped)
	}
}

func TestBlockCollector_EmptyBlockIgnored(t *testing.T) {
	c := newBlockCollector()
	c.checksum()
	c.checksum()

	select {
	case <-c.done:
		t.Error("An empty block should not complete the test")
	default:
	}
}

// ============================================================
// Replay Pacing
// ============================================================

func TestReplayPacer(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		speed float64
		steps []time.Duration // offsets from base
		want  []time.Duration
	}{
		{"realtime", 1, []time.Duration{0, time.Second, 1500 * time.Millisecond}, []time.Duration{0, time.Second, 500 * time.Millisecond}},
		{"double speed", 2, []time.Duration{0, time.Second}, []time.Duration{0, 500 * time.Millisecond}},
		{"backwards clock", 1, []time.Duration{time.Second, 0, time.Second}, []time.Duration{0, 0, time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &replayPacer{speed: tt.speed}
			for i, off := range tt.steps {
				if got := p.delay(base.Add(off)); got != tt.want[i] {
					t.Errorf("step %d: delay = %s, want %s", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestReplayPacer_WaitCancelled(t *testing.T) {
	base := time.Now()
	p := &replayPacer{speed: 1}
	p.delay(base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.wait(ctx, base.Add(time.Hour)); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

// writeSession appends one capture session holding the given label/value pairs
func writeSession(t *testing.T, buf *bytes.Buffer, start time.Time, pairs ...string) {
	t.Helper()
	w := vedirect.NewCaptureWriter(buf, uuid.New())
	for i := 0; i+1 < len(pairs); i += 2 {
		r := vedirect.Record{Label: pairs[i], Value: pairs[i+1]}
		if err := w.Write(r, start.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
}

func TestReplayer_LatchesRearmPerSession(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	writeSession(t, &buf, start, "FW", "150", "PID", "0xA389", "LOAD", "ON", "V", "12800")
	writeSession(t, &buf, start.Add(time.Hour), "FW", "161", "PID", "0xA053", "LOAD", "OFF", "V", "12750")

	telemetry := vedirect.NewTelemetry()
	sinks := vedirect.NewSinks()
	if err := telemetry.Register(sinks); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var published []string
	decoder := vedirect.NewDecoder(sinks, vedirect.WithPublishHook(func(r vedirect.Reading) {
		if r.Output.LatchOnce() {
			published = append(published, vedirect.FormatReading(r))
		}
	}))

	rp := newReplayer(telemetry, decoder)
	sessions := 0
	rp.onSession = func(string) { sessions++ }

	if err := rp.run(context.Background(), vedirect.NewCaptureReader(&buf)); err != nil {
		t.Fatalf("run: %v", err)
	}

	if sessions != 2 {
		t.Errorf("Expected 2 sessions, got %d", sessions)
	}

	want := []string{"1.50", "SmartShunt", "ON", "1.61", "SmartSolar MPPT 75/15", "OFF"}
	if strings.Join(published, "|") != strings.Join(want, "|") {
		t.Errorf("Latched readings = %q, want %q", published, want)
	}

	sensor, _ := telemetry.Sensor(vedirect.OutputFirmwareVersion)
	if r, ok := sensor.Reading(); !ok || r.Text != "1.61" {
		t.Errorf("Firmware version = %q, want 1.61", r.Text)
	}
}

func TestReplayer_SingleSessionKeepsLatch(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	writeSession(t, &buf, start, "FW", "150", "FW", "161")

	telemetry := vedirect.NewTelemetry()
	sinks := vedirect.NewSinks()
	if err := telemetry.Register(sinks); err != nil {
		t.Fatalf("Register: %v", err)
	}
	decoder := vedirect.NewDecoder(sinks)

	if err := newReplayer(telemetry, decoder).run(context.Background(), vedirect.NewCaptureReader(&buf)); err != nil {
		t.Fatalf("run: %v", err)
	}

	sensor, _ := telemetry.Sensor(vedirect.OutputFirmwareVersion)
	if r, _ := sensor.Reading(); r.Text != "1.50" {
		t.Errorf("Firmware version = %q, want first value 1.50", r.Text)
	}
	if sensor.Count() != 1 {
		t.Errorf("Expected 1 publish, got %d", sensor.Count())
	}
}

// ============================================================
// Reconnection
// ============================================================

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		cur, want time.Duration
	}{
		{time.Second, 2 * time.Second},
		{8 * time.Second, 16 * time.Second},
		{16 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := nextBackoff(tt.cur, reconnectMaxBackoff); got != tt.want {
			t.Errorf("nextBackoff(%s) = %s, want %s", tt.cur, got, tt.want)
		}
	}
}

func TestReconnector_ReopensUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	closed := 0
	opens := 0
	r := &reconnector{
		initial: time.Millisecond,
		max:     4 * time.Millisecond,
		open: func(context.Context) (*stream, error) {
			opens++
			if opens == 1 {
				return nil, errors.New("port busy")
			}
			return &stream{conn: nopConn{closed: &closed}, info: "fake"}, nil
		},
	}

	lost := 0
	var reconnected []string
	r.onLost = func(error) { lost++ }
	r.onReconnect = func(info string) { reconnected = append(reconnected, info) }

	sessions := 0
	err := r.run(ctx, &stream{conn: nopConn{closed: &closed}, info: "first"}, func(*stream) error {
		sessions++
		if sessions == 3 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run returned %v", err)
	}

	if sessions != 3 {
		t.Errorf("Expected 3 sessions, got %d", sessions)
	}
	if closed != 3 {
		t.Errorf("Expected every stream closed, got %d", closed)
	}
	if lost != 2 || len(reconnected) != 2 {
		t.Errorf("Expected 2 losses and 2 reconnects, got %d and %d", lost, len(reconnected))
	}
	if opens != 3 {
		t.Errorf("Expected a failed open to be retried, got %d opens", opens)
	}
}

func TestReconnector_CancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := &reconnector{
		initial: time.Hour,
		max:     time.Hour,
		open: func(context.Context) (*stream, error) {
			t.Error("open should not be called")
			return nil, errors.New("unreachable")
		},
		onLost: func(error) { cancel() },
	}

	done := make(chan error, 1)
	go func() {
		done <- r.run(ctx, &stream{conn: nopConn{}}, func(*stream) error { return nil })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected nil after cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

// ============================================================
// Ports
// ============================================================

func TestIsVEDirectCable(t *testing.T) {
	tests := []struct {
		name string
		port enumerator.PortDetails
		want bool
	}{
		{"victron cable", enumerator.PortDetails{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6015"}, true},
		{"other ftdi", enumerator.PortDetails{Name: "/dev/ttyUSB1", IsUSB: true, VID: "0403", PID: "6001"}, false},
		{"not usb", enumerator.PortDetails{Name: "/dev/ttyS0", VID: "0403", PID: "6015"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isVEDirectCable(&tt.port); got != tt.want {
				t.Errorf("isVEDirectCable = %v, want %v", got, tt.want)
			}
		})
	}
}

// ============================================================
// Terminal UI
// ============================================================

func newTestModel(t *testing.T) (model, *vedirect.Decoder) {
	t.Helper()
	tel := vedirect.NewTelemetry(vedirect.OutputBatteryVoltage, vedirect.OutputChargingMode)
	sinks := vedirect.NewSinks()
	if err := tel.Register(sinks); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return initialModel("Serial: /dev/ttyUSB0 @ 19200 baud", 10, false, vedirect.NewStatistics(), tel), vedirect.NewDecoder(sinks)
}

func update(m model, msg tea.Msg) model {
	next, _ := m.Update(msg)
	return next.(model)
}

func TestModel_Events(t *testing.T) {
	m, _ := newTestModel(t)

	m = update(m, syncMsg{skipped: 3})
	if !m.synchronized || m.skipped != 3 {
		t.Errorf("Expected synchronized with 3 skipped, got %v/%d", m.synchronized, m.skipped)
	}

	r := vedirect.Record{Label: "CS", Value: "42"}
	m = update(m, recordMsg{record: r, at: time.Now(), validationErrors: vedirect.ValidateRecord(r), reported: true})

	valid := vedirect.Record{Label: "V", Value: "12800"}
	m = update(m, recordMsg{record: valid, at: time.Now(), reported: true})

	m = update(m, staleMsg{label: "VP", idle: 250 * time.Millisecond})

	if len(m.eventLog) != 3 {
		t.Fatalf("Expected 3 log entries, got %d", len(m.eventLog))
	}
	if !m.eventLog[1].isError || !strings.Contains(m.eventLog[1].message, "UNMAPPED_CODE") {
		t.Errorf("Unexpected anomaly entry: %+v", m.eventLog[1])
	}
	if !m.eventLog[2].isError || !strings.Contains(m.eventLog[2].message, "VP") {
		t.Errorf("Unexpected stale entry: %+v", m.eventLog[2])
	}
}

func TestModel_UnreportedAnomaliesHidden(t *testing.T) {
	m, _ := newTestModel(t)

	r := vedirect.Record{Label: "", Value: "x"}
	m = update(m, recordMsg{record: r, at: time.Now(), validationErrors: vedirect.ValidateRecord(r), reported: false})
	if len(m.eventLog) != 0 {
		t.Errorf("Anomalies before synchronization should be hidden, got %d entries", len(m.eventLog))
	}
}

func TestModel_Keys(t *testing.T) {
	m, _ := newTestModel(t)
	m.addLogEntry("hello", false)

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if !m.showAll {
		t.Error("'a' should toggle show-all")
	}

	m = update(m, recordMsg{record: vedirect.Record{Label: "V", Value: "1"}, at: time.Now(), reported: true})
	if len(m.eventLog) != 2 {
		t.Errorf("Valid records should be logged in show-all mode, got %d entries", len(m.eventLog))
	}

	m = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if len(m.eventLog) != 0 {
		t.Errorf("'c' should clear the log, got %d entries", len(m.eventLog))
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(model).quitting || cmd == nil {
		t.Error("'q' should quit")
	}
}

func TestModel_LogLimit(t *testing.T) {
	m, _ := newTestModel(t)
	for i := 0; i < m.maxLogEntries+25; i++ {
		m.addLogEntry("entry", false)
	}
	if len(m.eventLog) != m.maxLogEntries {
		t.Errorf("Expected log capped at %d, got %d", m.maxLogEntries, len(m.eventLog))
	}
}

func TestModel_ReadingsTable(t *testing.T) {
	m, d := newTestModel(t)

	d.HandleRecord(vedirect.Record{Label: "V", Value: "12840"})
	m = update(m, tickMsg(time.Now()))

	rows := m.readings.Rows()
	if len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "12.840 V" {
		t.Errorf("Unexpected battery voltage cell %q", rows[0][1])
	}
	if rows[1][1] != "-" {
		t.Errorf("Unset output should show '-', got %q", rows[1][1])
	}

	view := m.View()
	if !strings.Contains(view, "VEDIRECT - ERROR DETECTION") || !strings.Contains(view, "Battery") {
		t.Errorf("View missing expected content")
	}
}

func TestModel_Closed(t *testing.T) {
	m, _ := newTestModel(t)
	m = update(m, closedMsg{err: errors.New("boom")})
	if !m.closed || len(m.eventLog) != 1 || !m.eventLog[0].isError {
		t.Errorf("Unexpected state after close: closed=%v log=%+v", m.closed, m.eventLog)
	}
}
