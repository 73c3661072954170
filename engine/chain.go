package engine

import (
	"context"
	"fmt"

	"github.com/ffbk-dev/autolog-controller/config"
	ctlerrors "github.com/ffbk-dev/autolog-controller/errors"
	"github.com/ffbk-dev/autolog-controller/executor"
	"github.com/ffbk-dev/autolog-controller/log"
	"github.com/ffbk-dev/autolog-controller/record"
	"github.com/ffbk-dev/autolog-controller/registry"
	"github.com/ffbk-dev/autolog-controller/statuscache"
)

// runFootageTask chains a footage record through its step graph, capped
// at config.MaxFootageChainSteps iterations, per §4.6's per-task logic.
// correlationID identifies this dispatch across every log line the task
// produces, the way google/uuid stamps request IDs upstream in the pack.
func (e *Engine) runFootageTask(ctx context.Context, f record.Footage, correlationID string) {
	token := e.token(ctx)
	current := f

	for i := 0; i < config.MaxFootageChainSteps; i++ {
		switch current.Status {
		case record.StatusAwaitingUserInput:
			return

		case record.StatusProcessingFrameInfo:
			if !e.allChildrenReady(current.ID) {
				e.logWaitOnce(current.ID, current.ID, string(current.Status), correlationID)
				return
			}
			step, ok := registry.NextFootageStep(current.Status)
			if !ok {
				e.markFailure(ctlerrors.NewFatalConfigError("no registered step for " + string(current.Status)))
				return
			}
			if err := e.runFootageStep(ctx, current, step, token, correlationID); err != nil {
				e.markFailure(err)
				return
			}
			// Step 6 completion is final: the footage advances to
			// FinalStatus and the chain stops without touching frames
			// (invariant 3).
			e.markStepSuccess("footage")
			return

		case record.StatusScrapingURL:
			if current.IsLibraryFootage() {
				e.awaitBothLevels(ctx, current, "lf_gate", "library footage always requires manual metadata input", correlationID)
				return
			}
			fresh, err := e.rereadFootage(ctx, current)
			if err != nil {
				log.LogError(current.ID, "mandatory re-read after URL scrape failed; using stale snapshot", err, "correlation_id", correlationID)
				fresh = current
			}
			if !e.QualityGate(fresh) {
				e.awaitBothLevels(ctx, current, "quality_gate", "scraped metadata did not meet the quality threshold", correlationID)
				return
			}
			step, ok := registry.NextFootageStep(current.Status)
			if !ok {
				e.markFailure(ctlerrors.NewFatalConfigError("no registered step for " + string(current.Status)))
				return
			}
			if err := e.runFootageStep(ctx, fresh, step, token, correlationID); err != nil {
				e.markFailure(err)
				return
			}
			current = fresh
			current.Status = step.NextStatus
			e.markStepSuccess("footage")
			continue // re-enter loop to check step-6 readiness

		case record.StatusForceResume:
			step, ok := registry.NextFootageStep(current.Status)
			if !ok {
				e.markFailure(ctlerrors.NewFatalConfigError("no registered step for Force Resume"))
				return
			}
			if err := e.runFootageStep(ctx, current, step, token, correlationID); err != nil {
				e.markFailure(err)
				return
			}
			current.Status = step.NextStatus
			e.markStepSuccess("footage")
			continue // re-enter loop to check step-6 readiness

		case record.StatusCreatingFrames:
			if current.IsLibraryFootage() {
				e.awaitBothLevels(ctx, current, "lf_gate", "library footage always requires manual metadata input", correlationID)
				return
			}
			step, ok := registry.NextFootageStep(current.Status)
			if !ok {
				e.markFailure(ctlerrors.NewFatalConfigError("no registered step for " + string(current.Status)))
				return
			}
			if !current.HasURL() {
				// invariant 6: skip the step entirely, advance by patch only.
				if err := e.Executor.Patcher.PatchFields(ctx, e.LayoutFootage, current.RecordKey, map[string]interface{}{
					record.FootageFieldMapping.Status: string(step.NextStatus),
				}); err != nil {
					e.markFailure(err)
					return
				}
				current.Status = step.NextStatus
				continue
			}
			if err := e.runFootageStep(ctx, current, step, token, correlationID); err != nil {
				e.markFailure(err)
				return
			}
			current.Status = step.NextStatus
			e.markStepSuccess("footage")
			continue

		default:
			step, ok := registry.NextFootageStep(current.Status)
			if !ok {
				return // terminal or unregistered: no more steps this cycle
			}
			if err := e.runFootageStep(ctx, current, step, token, correlationID); err != nil {
				e.markFailure(err)
				return
			}
			current.Status = step.NextStatus
			e.markStepSuccess("footage")
			continue
		}
	}

}

func (e *Engine) runFootageStep(ctx context.Context, f record.Footage, step registry.FootageStep, token, correlationID string) error {
	return e.Executor.Run(ctx, executor.Step{
		Layout:        e.LayoutFootage,
		RecordKey:     f.RecordKey,
		RecordID:      f.ID,
		Script:        step.Script,
		StatusField:   record.FootageFieldMapping.Status,
		PreStatus:     string(step.NextStatus),
		FinalStatus:   string(step.FinalStatus),
		Timeout:       step.Timeout,
		AuthToken:     token,
		CorrelationID: correlationID,
	})
}

// rereadFootage performs the mandatory single re-read after step 4 (§9's
// freshness design note) to pick up fields the scrape process wrote.
func (e *Engine) rereadFootage(ctx context.Context, f record.Footage) (record.Footage, error) {
	rec, err := e.Store.GetOne(ctx, e.LayoutFootage, f.RecordKey)
	if err != nil {
		return f, err
	}
	return record.DecodeFootage(rec.RecordKey, rec.Fields), nil
}

// awaitBothLevels sets the footage and every cached child frame to
// Awaiting User Input. Child updates are best-effort: a PartialUpdateError
// is logged but never aborts the footage transition (§4.5).
//
// gate/reason carry the dev-console diagnostic the original wrote to
// AI_DevConsole (write_to_dev_console) whenever a policy gate fired;
// here it's a structured log line instead of a store write,
// since the controller only ever writes status fields against footage.
func (e *Engine) awaitBothLevels(ctx context.Context, f record.Footage, gate, reason, correlationID string) {
	log.Log(f.ID, "policy gate routed record to Awaiting User Input", "gate", gate, "reason", reason, "correlation_id", correlationID)

	if err := e.Executor.SetAwaitingUserInput(ctx, e.LayoutFootage, f.RecordKey, record.FootageFieldMapping.Status, string(record.StatusAwaitingUserInput)); err != nil {
		log.LogError(f.ID, "failed to set footage to Awaiting User Input", err)
		return
	}

	var failed []string
	var causes []error
	for _, frameID := range e.Cache.ChildrenOf(f.ID) {
		entry, ok := e.Cache.GetFrame(frameID)
		if !ok {
			continue
		}
		if err := e.Executor.SetAwaitingUserInput(ctx, e.LayoutFrame, entry.RecordKey, record.FrameFieldMapping.Status, string(record.FrameStatusAwaitingUserInput)); err != nil {
			failed = append(failed, frameID)
			causes = append(causes, err)
		}
	}
	if len(failed) > 0 {
		if e.Metrics != nil {
			e.Metrics.PartialUpdateFails.Inc()
		}
		log.LogError(f.ID, "partial failure setting children to Awaiting User Input",
			ctlerrors.PartialUpdateError{Failed: failed, Causes: causes})
	}
}

// allChildrenReady implements the "my own children" readiness check for
// step 6 (invariant 2): every cached child frame must be ready.
func (e *Engine) allChildrenReady(footageID string) bool {
	children := e.Cache.ChildrenOf(footageID)
	if len(children) == 0 {
		return false
	}
	for _, id := range children {
		entry, ok := e.Cache.GetFrame(id)
		if !ok {
			return false
		}
		if !(record.Frame{Status: entry.Status, Caption: entry.Caption}).Ready() {
			return false
		}
	}
	return true
}

func (e *Engine) logWaitOnce(frameID, parentID, status, correlationID string) {
	key := fmt.Sprintf("%s:%s:%s", frameID, parentID, status)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loggedWaits[key] {
		return
	}
	e.loggedWaits[key] = true
	log.Log(frameID, "waiting on dependency", "parent", parentID, "status", status, "correlation_id", correlationID)
}

// runFrameTask chains a frame record through its step graph, capped at
// config.MaxFrameChainSteps iterations, per §4.6's per-task logic.
// correlationID identifies this dispatch across every log line the task
// produces, the way google/uuid stamps request IDs upstream in the pack.
func (e *Engine) runFrameTask(ctx context.Context, fr record.Frame, correlationID string) {
	token := e.token(ctx)
	originalStatus := fr.Status
	current := fr

	if current.Status != record.FrameStatusForceResume {
		readiness, parentStatus := e.Cache.IsParentReadyForFrames(current.ParentID)
		switch readiness {
		case statuscache.ReadinessMiss:
			return
		case statuscache.ReadinessTerminalSuccess:
			return
		case statuscache.ReadinessNotReady:
			e.logWaitOnce(current.ID, current.ParentID, string(parentStatus), correlationID)
			return
		}
	}

	for i := 0; i < config.MaxFrameChainSteps; i++ {
		step, ok := registry.NextFrameStep(current.Status)
		if !ok {
			break
		}
		if err := e.Executor.Run(ctx, executor.Step{
			Layout:        e.LayoutFrame,
			RecordKey:     current.RecordKey,
			RecordID:      current.ID,
			Script:        step.Script,
			StatusField:   record.FrameFieldMapping.Status,
			PreStatus:     string(step.NextStatus),
			Timeout:       step.Timeout,
			AuthToken:     token,
			CorrelationID: correlationID,
		}); err != nil {
			e.markFailure(err)
			return
		}
		current.Status = step.NextStatus
		e.markStepSuccess("frame")
		if current.Status == record.FrameStatusAudioTranscribed {
			break
		}
	}

	if originalStatus == record.FrameStatusForceResume && current.Status == record.FrameStatusAudioTranscribed {
		if err := e.Executor.Patcher.PatchFields(ctx, e.LayoutFrame, current.RecordKey, map[string]interface{}{
			record.FrameFieldMapping.Status: string(record.FrameStatusAudioTranscribed),
		}); err != nil {
			log.LogError(current.ID, "failed to finalize Force Resume frame status", err, "correlation_id", correlationID)
		}
	}
}
