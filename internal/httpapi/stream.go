package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sctg-development/rust-photoacoustic-sub000/internal/paerrors"
	"github.com/sctg-development/rust-photoacoustic-sub000/internal/streaming"
)

// handleAudioStream serves GET /api/audio/stream/{nodeID} as
// text/event-stream, emitting one "data: <json>\n\n" event per frame
// published into the named streaming node's broadcaster (spec.md 6).
// The binary wire format (streaming.EncodeBinary) is reserved for a
// future ?format=binary raw-socket variant; SSE only carries text frames.
func (s *Server) handleAudioStream(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	bcast, ok := s.orch.Streams().Lookup(nodeID)
	if !ok {
		writeErrorStatus(w, http.StatusNotFound, paerrors.KindConfiguration, fmt.Sprintf("no streaming node %q", nodeID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeErrorStatus(w, http.StatusInternalServerError, "internal", "streaming unsupported by response writer")
		return
	}

	acq := s.orch.SharedConfig().Snapshot().Acquisition
	sub := bcast.Subscribe(acq.LatencyBudgetMs, acq.SampleRate, acq.FrameSize)
	defer bcast.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	ch := sub.Chan()
	for {
		select {
		case <-ctx.Done():
			return
		case frame, open := <-ch:
			if !open {
				return
			}
			body, err := streaming.EncodeJSON(frame)
			if err != nil {
				s.logger.Error("encode stream frame failed", "node", nodeID, "err", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", body); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
