package tasks

import (
	"fmt"
	"path/filepath"

	"github.com/desertthunder/visionary/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or API layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data, e.g. the *Outcome of a finished photo
}

// Operation phase enumeration
type Phase int

const (
	QueuePhotos Phase = iota
	ClassifyPhoto
	PhotoFiled
	PhotoFailed
	BatchDone
)

func (p Phase) String() string {
	switch p {
	case QueuePhotos:
		return "queue_photos"
	case ClassifyPhoto:
		return "classify_photo"
	case PhotoFiled:
		return "photo_filed"
	case PhotoFailed:
		return "photo_failed"
	case BatchDone:
		return "batch_done"
	default:
		return ""
	}
}

func queueUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   QueuePhotos,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Queued %d photos...", total),
	}
}

func classifyingUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClassifyPhoto,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Classifying %s...", step, total, filepath.Base(path)),
	}
}

func filedUpdate(step, total int, path string, out *Outcome) ProgressUpdate {
	c := out.Classification
	return ProgressUpdate{
		Phase:   PhotoFiled,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s → %s (%s)", step, total, filepath.Base(path), c.AlbumName(), shared.FormatConfidence(c.Confidence())),
		Data:    out,
	}
}

func failedUpdate(step, total int, path string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhotoFailed,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, filepath.Base(path), err),
		Data:    err,
	}
}

func batchDoneUpdate(result *BulkResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   BatchDone,
		Step:    result.Total,
		Total:   result.Total,
		Message: fmt.Sprintf("Filed %d of %d photos (%d failed)", result.Succeeded, result.Total, result.Failed),
		Data:    result,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
