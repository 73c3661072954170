package registry

import (
	"testing"

	"github.com/ffbk-dev/autolog-controller/record"
)

// These assertions pin the exact script/next-status pairs against the
// source chain tables; a wrong edge here silently mis-sequences a whole
// class of records in production.
func TestNextFootageStepChain(t *testing.T) {
	cases := []struct {
		status     record.FootageStatus
		wantScript string
		wantNext   record.FootageStatus
		wantFinal  record.FootageStatus
	}{
		{record.StatusPendingFileInfo, "get_file_info", record.StatusFileInfoComplete, ""},
		{record.StatusFileInfoComplete, "generate_thumbnails", record.StatusThumbnailsComplete, ""},
		{record.StatusThumbnailsComplete, "create_frames", record.StatusCreatingFrames, ""},
		{record.StatusCreatingFrames, "scrape_url", record.StatusScrapingURL, ""},
		{record.StatusScrapingURL, "process_frames", record.StatusProcessingFrameInfo, ""},
		{record.StatusProcessingFrameInfo, "generate_description", record.StatusGeneratingDescription, record.StatusGeneratingEmbeddings},
		{record.StatusForceResume, "process_frames", record.StatusProcessingFrameInfo, ""},
	}
	for _, c := range cases {
		step, ok := NextFootageStep(c.status)
		if !ok {
			t.Fatalf("expected a registered step for %q", c.status)
		}
		if step.Script != c.wantScript {
			t.Errorf("%q: script = %q, want %q", c.status, step.Script, c.wantScript)
		}
		if step.NextStatus != c.wantNext {
			t.Errorf("%q: next status = %q, want %q", c.status, step.NextStatus, c.wantNext)
		}
		if step.FinalStatus != c.wantFinal {
			t.Errorf("%q: final status = %q, want %q", c.status, step.FinalStatus, c.wantFinal)
		}
	}
}

func TestNextFootageStepUnregisteredStatus(t *testing.T) {
	if _, ok := NextFootageStep(record.StatusComplete); ok {
		t.Error("terminal status must have no registered step")
	}
}

func TestNextFrameStepChain(t *testing.T) {
	cases := []struct {
		status     record.FrameStatus
		wantScript string
		wantNext   record.FrameStatus
	}{
		{record.FrameStatusPendingThumbnail, "thumb", record.FrameStatusThumbnailComplete},
		{record.FrameStatusThumbnailComplete, "caption", record.FrameStatusCaptionGenerated},
		{record.FrameStatusCaptionGenerated, "audio", record.FrameStatusAudioTranscribed},
		{record.FrameStatusForceResume, "caption", record.FrameStatusCaptionGenerated},
	}
	for _, c := range cases {
		step, ok := NextFrameStep(c.status)
		if !ok {
			t.Fatalf("expected a registered step for %q", c.status)
		}
		if step.Script != c.wantScript || step.NextStatus != c.wantNext {
			t.Errorf("%q: got (%q, %q), want (%q, %q)", c.status, step.Script, step.NextStatus, c.wantScript, c.wantNext)
		}
	}
}

func TestNextFrameStepUnregisteredStatus(t *testing.T) {
	if _, ok := NextFrameStep(record.FrameStatusAudioTranscribed); ok {
		t.Error("audio-transcribed is terminal for the controller and must have no registered step")
	}
}
