package pipeline

import "time"

// NopRecorder discards every observation
type NopRecorder struct{}

func (NopRecorder) RecordSync(SyncResult, time.Duration) {}
func (NopRecorder) RecordEnrichment(int, time.Duration)  {}
func (NopRecorder) RecordDigest(bool, time.Duration)     {}
func (NopRecorder) RecordBusy(Stage)                     {}

// MultiRecorder fans observations out to several recorders
type MultiRecorder []Recorder

func (m MultiRecorder) RecordSync(result SyncResult, elapsed time.Duration) {
	for _, r := range m {
		r.RecordSync(result, elapsed)
	}
}

func (m MultiRecorder) RecordEnrichment(enriched int, elapsed time.Duration) {
	for _, r := range m {
		r.RecordEnrichment(enriched, elapsed)
	}
}

func (m MultiRecorder) RecordDigest(created bool, elapsed time.Duration) {
	for _, r := range m {
		r.RecordDigest(created, elapsed)
	}
}

func (m MultiRecorder) RecordBusy(stage Stage) {
	for _, r := range m {
		r.RecordBusy(stage)
	}
}
