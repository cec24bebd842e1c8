package processor

import "github.com/reasonchip/reasonchip/internal/rcerrors"

func errUnknownHandle(h Handle) error {
	return rcerrors.New(rcerrors.KindInternal, "unknown or expired async handle %q", h.ID())
}
