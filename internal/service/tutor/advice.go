package tutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"go.uber.org/zap"
)

type AdvisedMove struct {
	UCI      string
	SAN      string
	Analysis corechess.MoveAnalysis
}

// Advice is the ranked list of candidate moves for the side to move.
type Advice struct {
	SessionUUID string
	Depth       int
	Turn        string
	MoveCount   int
	Moves       []AdvisedMove
	BoardImage  []byte
	Duration    time.Duration
}

func (a *Advice) Best() (AdvisedMove, bool) {
	if a == nil || len(a.Moves) == 0 {
		return AdvisedMove{}, false
	}
	return a.Moves[0], true
}

// Advise ranks the best moves in the current position. depth 0 uses the
// configured analysis depth.
func (s *Service) Advise(ctx context.Context, meta SessionMeta, depth int) (*Advice, error) {
	if depth == 0 {
		depth = s.cfg.AnalysisDepth
	}
	if depth < 1 || depth > MaxAdviceDepth {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}
	identity, payload, game, err := s.openSession(ctx, meta)
	if err != nil {
		return nil, err
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, ErrGameFinished
	}

	advice, err := s.computeAdvice(ctx, payload, game, depth)
	if err != nil {
		return nil, err
	}
	s.attachAdviceImage(ctx, advice, payload, game, meta)

	payload.HintsUsed++
	if err := s.saveSession(ctx, identity.SessionID, payload); err != nil {
		s.logger.Warn("tutor_hint_count_save_failed", zap.Error(err))
	}
	return advice, nil
}

func (s *Service) computeAdvice(ctx context.Context, payload *sessionPayload, game *nchess.Game, depth int) (*Advice, error) {
	analyzeCtx, cancel := context.WithTimeout(ctx, s.cfg.EngineTimeout)
	defer cancel()

	result, err := s.engine.Analyze(analyzeCtx, corechess.AnalyzeRequest{
		Moves: payload.Moves,
		Depth: depth,
		Limit: corechess.MaxAnalyses,
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	position := game.Position()
	advice := &Advice{
		SessionUUID: payload.SessionUUID,
		Depth:       result.Depth,
		Turn:        strings.ToLower(result.Turn.String()),
		MoveCount:   len(payload.Moves),
		Moves:       make([]AdvisedMove, 0, len(result.Moves)),
		Duration:    result.Duration,
	}
	for _, analysis := range result.Moves {
		moveUCI := analysis.Move.UCI()
		item := AdvisedMove{UCI: moveUCI, SAN: moveUCI, Analysis: analysis}
		if mv, err := (nchess.UCINotation{}).Decode(position, moveUCI); err == nil {
			item.SAN = nchess.AlgebraicNotation{}.Encode(position, mv)
		}
		advice.Moves = append(advice.Moves, item)
	}
	return advice, nil
}

func (s *Service) attachAdviceImage(ctx context.Context, advice *Advice, payload *sessionPayload, game *nchess.Game, meta SessionMeta) {
	best, ok := advice.Best()
	if !ok {
		return
	}
	mv, err := (nchess.UCINotation{}).Decode(game.Position(), best.UCI)
	if err != nil {
		return
	}
	arrow := RenderOptions{Arrow: &MoveHighlight{From: mv.S1(), To: mv.S2()}}
	advice.BoardImage = s.present(ctx, meta, sessionIdentity{}, payload, game, arrow, false).BoardImage
}

// scheduleAutoAdvice analyses the position after the engine reply when the
// session asked for it. With a debouncer configured the result is delivered
// later and only if the player has not moved again in the meantime.
func (s *Service) scheduleAutoAdvice(ctx context.Context, meta SessionMeta, identity sessionIdentity, payload *sessionPayload, game *nchess.Game, summary *MoveSummary) {
	if !payload.AutoAdvice || summary.Finished {
		return
	}
	if game.Position().Turn() != nchess.White {
		return
	}
	if s.advice == nil || s.notify == nil {
		advice, err := s.computeAdvice(ctx, payload, game, s.cfg.AnalysisDepth)
		if err != nil {
			s.logger.Warn("tutor_auto_advice_failed", zap.Error(err), zap.String("session_uuid", payload.SessionUUID))
			return
		}
		summary.Advice = advice
		return
	}

	snapshot := payload.clone()
	board := game.Clone()
	depth := s.cfg.AnalysisDepth
	err := s.advice.Submit(identity.SessionID,
		func(runCtx context.Context) (*Advice, error) {
			advice, err := s.computeAdvice(runCtx, snapshot, board, depth)
			if err != nil {
				return nil, err
			}
			s.attachAdviceImage(runCtx, advice, snapshot, board, meta)
			return advice, nil
		},
		func(advice *Advice) { s.notify(meta, advice) },
	)
	if err != nil {
		s.logger.Warn("tutor_auto_advice_submit_failed", zap.Error(err))
		return
	}
	summary.AdvicePending = true
}
