// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vedirect

import (
	"fmt"
	"sync"
	"time"
)

// Statistics tracks stream health: records, resynchronizations and anomalies.
// Methods are safe for concurrent use.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Bytes          uint64
	TotalRecords   uint64
	ValidRecords   uint64
	UnknownLabels  uint64
	EmptyLabels    uint64
	ChecksumFrames uint64
	StaleResets    uint64
	Anomalies      uint64
	NonNumeric     uint64
	Overflows      uint64
	UnmappedCodes  uint64

	// Rates (calculated)
	RecordRate float64 // records/sec
	ErrorRate  float64 // resets+anomalies/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddBytes counts raw bytes consumed from the link
func (s *Statistics) AddBytes(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bytes += uint64(n)
}

// Update counts a completed record and its validation errors
func (s *Statistics) Update(r Record, validationErrors []ValidationError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.TotalRecords++
	s.LastUpdateTime = time.Now()

	if len(validationErrors) == 0 {
		s.ValidRecords++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyEmptyLabel:
			s.EmptyLabels++
		case AnomalyUnknownLabel:
			s.UnknownLabels++
		case AnomalyNonNumeric:
			s.NonNumeric++
			s.Anomalies++
		case AnomalyOverflow:
			s.Overflows++
			s.Anomalies++
		case AnomalyUnmappedCode:
			s.UnmappedCodes++
			s.Anomalies++
		default:
			s.Anomalies++
		}
	}
}

// ChecksumFrame counts a discarded checksum frame (one per transmitted block)
func (s *Statistics) ChecksumFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ChecksumFrames++
}

// StaleReset counts a staleness resynchronization
func (s *Statistics) StaleReset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StaleResets++
}

// CalculateRates calculates record and error rates
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.RecordRate = float64(s.TotalRecords) / elapsed
		s.ErrorRate = float64(s.StaleResets+s.Anomalies) / elapsed
	}
}

// StatisticsSnapshot is a lock-free copy of the counters
type StatisticsSnapshot struct {
	Uptime         time.Duration `json:"uptime_ns"`
	Bytes          uint64        `json:"bytes"`
	TotalRecords   uint64        `json:"total_records"`
	ValidRecords   uint64        `json:"valid_records"`
	UnknownLabels  uint64        `json:"unknown_labels"`
	EmptyLabels    uint64        `json:"empty_labels"`
	ChecksumFrames uint64        `json:"checksum_frames"`
	StaleResets    uint64        `json:"stale_resets"`
	Anomalies      uint64        `json:"anomalies"`
	RecordRate     float64       `json:"record_rate"`
	ErrorRate      float64       `json:"error_rate"`
}

// Snapshot returns a consistent copy of the counters with fresh rates
func (s *Statistics) Snapshot() StatisticsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return StatisticsSnapshot{
		Uptime:         time.Since(s.StartTime),
		Bytes:          s.Bytes,
		TotalRecords:   s.TotalRecords,
		ValidRecords:   s.ValidRecords,
		UnknownLabels:  s.UnknownLabels,
		EmptyLabels:    s.EmptyLabels,
		ChecksumFrames: s.ChecksumFrames,
		StaleResets:    s.StaleResets,
		Anomalies:      s.Anomalies,
		RecordRate:     s.RecordRate,
		ErrorRate:      s.ErrorRate,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()

	var validPercent, unknownPercent, anomalyPercent float64
	if s.TotalRecords > 0 {
		validPercent = float64(s.ValidRecords) * 100.0 / float64(s.TotalRecords)
		unknownPercent = float64(s.UnknownLabels) * 100.0 / float64(s.TotalRecords)
		anomalyPercent = float64(s.Anomalies) * 100.0 / float64(s.TotalRecords)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Read:      %8d\n", s.Bytes)
	result += fmt.Sprintf("Total Records:   %8d\n", s.TotalRecords)
	result += fmt.Sprintf("Valid Records:   %8d (%.1f%%)\n", s.ValidRecords, validPercent)
	result += fmt.Sprintf("Blocks:          %8d\n", s.ChecksumFrames)

	if s.UnknownLabels > 0 {
		result += fmt.Sprintf("Unknown Labels:  %8d (%.1f%%)\n", s.UnknownLabels, unknownPercent)
	}
	if s.EmptyLabels > 0 {
		result += fmt.Sprintf("Empty Labels:    %8d\n", s.EmptyLabels)
	}
	if s.StaleResets > 0 {
		result += fmt.Sprintf("Stale Resets:    %8d\n", s.StaleResets)
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.Anomalies, anomalyPercent)
		if s.NonNumeric > 0 {
			result += fmt.Sprintf("  Non-numeric:      %5d\n", s.NonNumeric)
		}
		if s.Overflows > 0 {
			result += fmt.Sprintf("  Overflow:         %5d\n", s.Overflows)
		}
		if s.UnmappedCodes > 0 {
			result += fmt.Sprintf("  Unmapped codes:   %5d\n", s.UnmappedCodes)
		}
	}

	result += fmt.Sprintf("Record Rate:     %8.1f recs/sec\n", s.RecordRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.Bytes = 0
	s.TotalRecords = 0
	s.ValidRecords = 0
	s.UnknownLabels = 0
	s.EmptyLabels = 0
	s.ChecksumFrames = 0
	s.StaleResets = 0
	s.Anomalies = 0
	s.NonNumeric = 0
	s.Overflows = 0
	s.UnmappedCodes = 0
	s.RecordRate = 0
	s.ErrorRate = 0
}
