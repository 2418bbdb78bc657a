package chat

import (
	"context"

	"github.com/rs/zerolog"

	"racebot/internal/util"
)

// maxOperatorText keeps operator DMs under the platform's message limit.
const maxOperatorText = 1950

type Notifier interface {
	NotifyOperator(ctx context.Context, text string)
}

// OperatorNotifier sends error reports to the operator's DMs. With no
// operator configured the reports only reach the log.
type OperatorNotifier struct {
	platform Platform
	userID   int64
	log      zerolog.Logger
}

func NewOperatorNotifier(p Platform, userID int64, log zerolog.Logger) *OperatorNotifier {
	return &OperatorNotifier{platform: p, userID: userID, log: log.With().Str("component", "operator").Logger()}
}

func (n *OperatorNotifier) NotifyOperator(ctx context.Context, text string) {
	n.log.Warn().Msg(text)
	if n.userID == 0 {
		return
	}
	msg := "Error in race bot!!\n" + util.Truncate(text, maxOperatorText)
	if err := n.platform.SendDirect(ctx, n.userID, msg); err != nil {
		n.log.Error().Err(err).Msg("notify operator")
	}
}
