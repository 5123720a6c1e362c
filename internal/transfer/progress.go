package transfer

// Phase identifies which stage of a transfer a progress event belongs to.
type Phase string

const (
	PhaseDownloading Phase = "downloading"
	PhaseDecrypting  Phase = "decrypting"
	PhaseSaving      Phase = "saving"
	PhaseEncrypting  Phase = "encrypting"
	PhaseUploading   Phase = "uploading"
)

// ProgressEvent is a discrete phase+percentage update delivered on the
// channel passed into a transfer call. Delivery is best-effort: a slow
// consumer drops events rather than stalling the transfer.
type ProgressEvent struct {
	Phase   Phase
	Percent int
}

func emit(ch chan<- ProgressEvent, phase Phase, percent int) {
	if ch == nil {
		return
	}
	select {
	case ch <- ProgressEvent{Phase: phase, Percent: percent}:
	default:
	}
}
