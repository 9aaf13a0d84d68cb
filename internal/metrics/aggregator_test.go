//-------------------------------------------------------------------------
//
// RAG Chat Server
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package metrics

import (
	"sync"
	"testing"
)

func TestRecordRequestCounts(t *testing.T) {
	a := NewAggregator()

	a.RecordRequest("/v1/chat", false)
	a.RecordRequest("/v1/chat", false)
	a.RecordRequest("/v1/chat", true)
	a.RecordRequest("/v1/search", false)

	snap := a.Snapshot()
	if snap.RequestsByPath["/v1/chat"] != 3 {
		t.Errorf("expected 3 chat requests, got %d", snap.RequestsByPath["/v1/chat"])
	}
	if snap.ErrorsByPath["/v1/chat"] != 1 {
		t.Errorf("expected 1 chat error, got %d", snap.ErrorsByPath["/v1/chat"])
	}
	if snap.RequestsByPath["/v1/search"] != 1 {
		t.Errorf("expected 1 search request, got %d", snap.RequestsByPath["/v1/search"])
	}
	if snap.ErrorsByPath["/v1/search"] != 0 {
		t.Errorf("expected 0 search errors, got %d", snap.ErrorsByPath["/v1/search"])
	}
}

func TestEmptySnapshotIsZero(t *testing.T) {
	a := NewAggregator()
	snap := a.Snapshot()

	if snap.SampleCount != 0 {
		t.Errorf("expected 0 samples, got %d", snap.SampleCount)
	}
	if snap.Timings.AverageMS != (Sample{}) {
		t.Errorf("expected zero averages, got %+v", snap.Timings.AverageMS)
	}
	if snap.Timings.P50MS != (Sample{}) || snap.Timings.P95MS != (Sample{}) {
		t.Errorf("expected zero percentiles, got %+v", snap.Timings)
	}
}

func TestPercentilesNearestRank(t *testing.T) {
	a := NewAggregator()
	for _, ms := range []float64{10, 20, 30, 40, 50} {
		a.RecordTimings(Sample{GenerateMS: ms, TotalMS: ms})
	}

	snap := a.Snapshot()
	// Nearest-rank on 5 elements: p50 index = round(0.5*4) = 2 -> 30,
	// p95 index = round(0.95*4) = 4 -> 50.
	if snap.Timings.P50MS.GenerateMS != 30 {
		t.Errorf("expected p50 30, got %g", snap.Timings.P50MS.GenerateMS)
	}
	if snap.Timings.P95MS.GenerateMS != 50 {
		t.Errorf("expected p95 50, got %g", snap.Timings.P95MS.GenerateMS)
	}
	if snap.Timings.AverageMS.TotalMS != 30 {
		t.Errorf("expected average 30, got %g", snap.Timings.AverageMS.TotalMS)
	}
}

func TestRingBufferEvictsOldestButAverageTracksAll(t *testing.T) {
	a := NewAggregator()

	// 20 samples at 100ms, then a 21st at 310ms.
	for i := 0; i < TimingBufferSize; i++ {
		a.RecordTimings(Sample{TotalMS: 100})
	}
	a.RecordTimings(Sample{TotalMS: 310})

	snap := a.Snapshot()
	if len(snap.Samples) != TimingBufferSize {
		t.Fatalf("expected %d buffered samples, got %d",
			TimingBufferSize, len(snap.Samples))
	}
	if snap.Samples[len(snap.Samples)-1].TotalMS != 310 {
		t.Errorf("expected newest sample last, got %+v",
			snap.Samples[len(snap.Samples)-1])
	}
	if snap.SampleCount != 21 {
		t.Errorf("expected running count 21, got %d", snap.SampleCount)
	}

	// Running average reflects all 21: (20*100 + 310) / 21 = 110.
	if got := snap.Timings.AverageMS.TotalMS; got != 110 {
		t.Errorf("expected all-time average 110, got %g", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	a := NewAggregator()
	a.RecordRequest("/v1/chat", false)
	a.RecordTimings(Sample{TotalMS: 5})

	snap := a.Snapshot()
	snap.RequestsByPath["/v1/chat"] = 999
	snap.Samples[0].TotalMS = 999

	fresh := a.Snapshot()
	if fresh.RequestsByPath["/v1/chat"] != 1 {
		t.Error("mutating a snapshot leaked into the aggregator")
	}
	if fresh.Samples[0].TotalMS != 5 {
		t.Error("mutating snapshot samples leaked into the aggregator")
	}
}

func TestReset(t *testing.T) {
	a := NewAggregator()
	a.RecordRequest("/v1/chat", true)
	a.RecordTimings(Sample{TotalMS: 5})

	a.Reset()

	snap := a.Snapshot()
	if len(snap.RequestsByPath) != 0 || snap.SampleCount != 0 {
		t.Errorf("expected empty snapshot after reset, got %+v", snap)
	}
}

func TestConcurrentRecording(t *testing.T) {
	a := NewAggregator()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				a.RecordRequest("/v1/chat", j%10 == 0)
				a.RecordTimings(Sample{TotalMS: float64(j)})
			}
		}()
	}
	wg.Wait()

	snap := a.Snapshot()
	if snap.RequestsByPath["/v1/chat"] != 800 {
		t.Errorf("expected 800 requests, got %d", snap.RequestsByPath["/v1/chat"])
	}
	if snap.SampleCount != 800 {
		t.Errorf("expected 800 samples counted, got %d", snap.SampleCount)
	}
	if len(snap.Samples) != TimingBufferSize {
		t.Errorf("expected full ring buffer, got %d", len(snap.Samples))
	}
}

func TestPercentileSingleSample(t *testing.T) {
	a := NewAggregator()
	a.RecordTimings(Sample{RetrieveMS: 42})

	snap := a.Snapshot()
	if snap.Timings.P50MS.RetrieveMS != 42 || snap.Timings.P95MS.RetrieveMS != 42 {
		t.Errorf("expected both percentiles 42, got %+v", snap.Timings)
	}
}
