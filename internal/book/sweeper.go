package book

import (
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

// sessionCutoffHour is the local wall-clock hour at which GoodForDay orders
// are retired.
const sessionCutoffHour = 16

// sweepGuard is added on top of the computed cutoff so the sweep
// consistently fires a touch after the boundary rather than racing it.
const sweepGuard = 100 * time.Millisecond

// Sweeper is the session sweeper (spec §4.9): a background goroutine that
// retires every resting GoodForDay order at the daily cutoff. It is
// managed with the same tomb.Tomb lifecycle the teacher uses for its
// worker pool and TCP server, so Stop() cleanly joins the goroutine before
// returning.
type Sweeper struct {
	book *Orderbook
	now  func() time.Time
	t    tomb.Tomb
}

// NewSweeper builds a sweeper bound to a book. It does not start running
// until Start is called.
func NewSweeper(b *Orderbook) *Sweeper {
	return &Sweeper{book: b, now: time.Now}
}

// Start launches the sweeper's background loop.
func (s *Sweeper) Start() {
	s.t.Go(s.run)
}

// Stop signals shutdown and blocks until the sweeper goroutine exits,
// mirroring spec §5: "the book's destruction waits for the sweeper to
// exit before releasing owned orders."
func (s *Sweeper) Stop() error {
	s.t.Kill(nil)
	return s.t.Wait()
}

func (s *Sweeper) run() error {
	for {
		cutoff := nextCutoff(s.now())
		wait := time.Until(cutoff) + sweepGuard

		log.Debug().
			Time("cutoff", cutoff).
			Dur("wait", wait).
			Msg("session sweeper scheduled next cutoff")

		timer := time.NewTimer(wait)
		select {
		case <-s.t.Dying():
			timer.Stop()
			return nil
		case <-timer.C:
			s.sweep()
		}
	}
}

// sweep collects and cancels every resting GoodForDay order. It acquires
// the book's lock twice — once to collect ids, once (inside CancelOrders)
// to cancel them — per spec §5.
func (s *Sweeper) sweep() {
	ids := s.book.collectGoodForDay()
	if len(ids) == 0 {
		return
	}
	log.Info().Int("count", len(ids)).Msg("session sweeper cancelling GoodForDay orders")
	s.book.CancelOrders(ids)
}

// nextCutoff computes the next 16:00 local wall-clock instant strictly
// after now. Daylight-saving transitions are handled by time.Date's
// underlying location-aware normalization.
func nextCutoff(now time.Time) time.Time {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), sessionCutoffHour, 0, 0, 0, now.Location())
	if !now.Before(cutoff) {
		cutoff = cutoff.AddDate(0, 0, 1)
	}
	return cutoff
}
