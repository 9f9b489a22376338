package pipeline

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ilpengine/engine/internal/ilp"
	"github.com/ilpengine/engine/internal/store"
	"go.uber.org/zap"
)

// Server is the inbound half of the wire transport HTTPPeerTransport
// speaks: it authenticates the peer by its incoming bearer token and hands
// the decoded prepare packet to Pipeline.Process.
type Server struct {
	pipeline *Pipeline
	domain   store.DomainStore
	log      *zap.Logger
}

func NewServer(p *Pipeline, domain store.DomainStore, log *zap.Logger) *Server {
	return &Server{pipeline: p, domain: domain, log: log}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	peer, err := s.domain.FindPeerByIncomingToken(r.Context(), token)
	if err != nil {
		http.Error(w, "unknown peer", http.StatusUnauthorized)
		return
	}

	var wire wirePrepare
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "malformed prepare packet", http.StatusBadRequest)
		return
	}
	var condition [32]byte
	copy(condition[:], unb64(wire.ExecutionCondition))
	prepare := &ilp.Prepare{
		Amount:             wire.Amount,
		Destination:        wire.Destination,
		ExpiresAt:          wire.ExpiresAt,
		ExecutionCondition: condition,
		Data:               unb64(wire.Data),
	}

	result, err := s.pipeline.Process(r.Context(), prepare, peer)
	if err != nil {
		s.log.Error("pipeline processing failed", zap.String("peer", peer.ID), zap.Error(err))
		writeWireResponse(w, nil, ilp.NewReject(ilp.CodeInternalError, "internal error", ""))
		return
	}
	writeWireResponse(w, result.Fulfill, result.Reject)
}

func writeWireResponse(w http.ResponseWriter, fulfill *ilp.Fulfill, reject *ilp.Reject) {
	wire := wireResponse{}
	if reject != nil {
		wire.Reject = &wireReject{Code: string(reject.Code), Message: reject.Message, TriggeredBy: reject.TriggeredBy, Data: b64(reject.Data)}
	} else if fulfill != nil {
		wire.Fulfillment = b64(fulfill.FulfillmentPreimage[:])
		wire.Data = b64(fulfill.Data)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(wire)
}
