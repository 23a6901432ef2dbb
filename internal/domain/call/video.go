package call

// VideoHandler receives intro-video load and playback events. The
// orchestrator implements it; the actual media element lives elsewhere
// (browser or local player).
type VideoHandler interface {
	// VideoProgress reports buffering progress as a percentage.
	VideoProgress(percent float64)
	// VideoReady signals the video can play through without stalling.
	VideoReady()
	// VideoEnded signals natural end of playback.
	VideoEnded()
	// VideoError signals a load or playback failure. The call skips the
	// video and proceeds to conversation.
	VideoError(err error)
}

// VideoSource starts loading a persona intro video and delivers its
// events to the handler.
type VideoSource interface {
	Load(ref string, h VideoHandler)
	// Play requests playback once the video is ready.
	Play()
}

// NoVideo is a VideoSource for surfaces with no video element. It
// reports an immediate load error so the call falls straight through to
// the conversation phase.
type NoVideo struct{}

func (NoVideo) Load(ref string, h VideoHandler) {
	h.VideoError(errNoVideoElement)
}

func (NoVideo) Play() {}

var errNoVideoElement = videoError("no video element on this surface")

type videoError string

func (e videoError) Error() string { return string(e) }
