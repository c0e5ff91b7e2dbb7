package anchor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Target is the slice of the ledger the scheduler needs: the current root,
// how many leaves back it, and anchor persistence.
type Target interface {
	Root() string
	LeafCount() int
	RecordAnchor(ctx context.Context, a *Anchor) error
	AnchorForRoot(ctx context.Context, root string) (*Anchor, error)
}

// Scheduler anchors the ledger's current root on a cadence: every interval,
// or as soon as appendThreshold new leaves accrued since the last anchor,
// whichever comes first. A failed fetch is logged and retried on the next
// tick; the append path is never blocked.
type Scheduler struct {
	target    Target
	source    Source
	interval  time.Duration
	threshold int
	poll      time.Duration
	logger    *zap.Logger

	lastAnchored time.Time
	lastLeaves   int

	// OnAnchored, when set, is called after each successfully recorded
	// anchor with the witness source type.
	OnAnchored func(source string)
}

// NewScheduler creates a Scheduler. interval zero defaults to 24h, threshold
// zero to 1000 appends — the protocol's recommended cadence.
func NewScheduler(target Target, source Source, interval time.Duration, threshold int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if threshold <= 0 {
		threshold = 1000
	}
	return &Scheduler{
		target:    target,
		source:    source,
		interval:  interval,
		threshold: threshold,
		poll:      30 * time.Second,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled, anchoring whenever the cadence fires.
func (s *Scheduler) Run(ctx context.Context) {
	s.lastAnchored = time.Now()
	s.lastLeaves = s.target.LeafCount()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.due() {
				continue
			}
			if err := s.AnchorNow(ctx); err != nil {
				s.logger.Warn("anchor attempt failed", zap.String("source", s.source.Type()), zap.Error(err))
			}
		}
	}
}

// due reports whether either leg of the cadence has fired.
func (s *Scheduler) due() bool {
	if time.Since(s.lastAnchored) >= s.interval {
		return true
	}
	return s.target.LeafCount()-s.lastLeaves >= s.threshold
}

// AnchorNow fetches a witness and records it against the current root.
// An empty or already-anchored root is skipped without fetching.
func (s *Scheduler) AnchorNow(ctx context.Context) error {
	root := s.target.Root()
	leaves := s.target.LeafCount()
	if leaves == 0 {
		return nil
	}
	if existing, err := s.target.AnchorForRoot(ctx, root); err == nil && existing != nil {
		s.markAnchored(leaves)
		return nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	witness, err := s.source.Fetch(fetchCtx)
	if err != nil {
		return err
	}

	a := &Anchor{
		MerkleRoot: root,
		Type:       witness.Type,
		Timestamp:  witness.Timestamp,
		Reference:  witness.Reference,
		Payload:    witness.Payload,
	}
	if err := s.target.RecordAnchor(ctx, a); err != nil {
		return err
	}

	s.markAnchored(leaves)
	if s.OnAnchored != nil {
		s.OnAnchored(witness.Type)
	}
	s.logger.Info("root anchored",
		zap.String("root", root),
		zap.String("source", witness.Type),
		zap.Int64("external_timestamp", witness.Timestamp),
		zap.Int("leaf_count", leaves),
	)
	return nil
}

func (s *Scheduler) markAnchored(leaves int) {
	s.lastAnchored = time.Now()
	s.lastLeaves = leaves
}

// IsUnreachable reports whether err came from an unreachable witness source.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrSourceUnreachable)
}
