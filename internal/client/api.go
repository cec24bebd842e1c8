package client

import (
	"context"

	"github.com/google/uuid"

	"github.com/reasonchip/reasonchip/internal/packet"
	"github.com/reasonchip/reasonchip/internal/rcerrors"
)

// RunResult is the outcome of one run_pipeline call (spec §4.9 API:
// "(rc, result, error)").
type RunResult struct {
	RC     packet.RC
	Result any
	Error  string
}

// RunPipeline opens a Session, sends RUN{cookie,pipeline,variables}, and
// reads packets until the matching RESULT arrives, releasing the session
// on every return path (spec §4.9 "run_pipeline"). An empty cookie mints
// a fresh one.
func (m *Multiplexor) RunPipeline(ctx context.Context, name string, variables map[string]any, cookie string) (RunResult, error) {
	if cookie == "" {
		cookie = uuid.NewString()
	}

	s := m.RegisterSession()
	defer m.ReleaseSession(s.id)

	if err := s.Send(ctx, packet.Run(cookie, name, variables)); err != nil {
		return RunResult{}, rcerrors.Wrap(rcerrors.KindTransport, err, "sending RUN for %q", name)
	}

	for {
		pkt, err := s.Recv(ctx)
		if err != nil {
			if rcerrors.As(err, rcerrors.KindCancelled) {
				_ = s.Send(context.Background(), packet.Cancel(cookie))
			}
			return RunResult{}, err
		}
		if pkt.Type != packet.TypeResult || pkt.Cookie != cookie {
			continue
		}
		return RunResult{RC: pkt.RC, Result: pkt.Result, Error: pkt.Error}, nil
	}
}

// Cancel forwards a user-initiated CANCEL for cookie to the broker (spec
// §4.9 "CANCEL packets initiated by the API on user request are forwarded
// to the broker").
func (s *Session) Cancel(ctx context.Context, cookie string) error {
	return s.Send(ctx, packet.Cancel(cookie))
}
