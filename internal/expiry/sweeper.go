package expiry

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/logutil"
	"github.com/tunnelpanel/tunnelpanel/internal/orchestrator"
)

// ExpiredLister yields the active accounts whose expiry date has passed.
type ExpiredLister interface {
	ListExpired() ([]database.SSHAccount, error)
}

// AccountToggler deactivates an account through the same ordering rules as a
// manual toggle, so the sweep never invents a second code path for locking.
type AccountToggler interface {
	Toggle(ctx context.Context, username string) (*database.SSHAccount, *orchestrator.OpError)
}

// Sweeper periodically locks expired accounts. Failures are logged and the
// account is retried on the next run; the sweep never takes the panel down.
type Sweeper struct {
	store    ExpiredLister
	accounts AccountToggler
	cron     *cron.Cron

	// Timeout bounds one whole sweep run.
	Timeout time.Duration
}

func NewSweeper(store ExpiredLister, accounts AccountToggler) *Sweeper {
	return &Sweeper{
		store:    store,
		accounts: accounts,
		Timeout:  5 * time.Minute,
	}
}

// Start schedules the sweep with a cron expression (e.g. "@hourly").
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("expiry: sweep scheduled (%s)", schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep locks every expired active account and returns how many were
// deactivated.
func (s *Sweeper) Sweep(ctx context.Context) int {
	expired, err := s.store.ListExpired()
	if err != nil {
		log.Printf("expiry: list expired accounts: %v", err)
		return 0
	}

	locked := 0
	for _, acct := range expired {
		if _, opErr := s.accounts.Toggle(ctx, acct.Username); opErr != nil {
			log.Printf("expiry: deactivate %s: %v", logutil.SanitizeForLog(acct.Username), opErr)
			continue
		}
		log.Printf("expiry: deactivated expired account %s", logutil.SanitizeForLog(acct.Username))
		locked++
	}
	return locked
}
