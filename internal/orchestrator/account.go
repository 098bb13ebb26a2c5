package orchestrator

import (
	"context"
	"errors"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/tunnelpanel/tunnelpanel/internal/crypto"
	"github.com/tunnelpanel/tunnelpanel/internal/database"
	"github.com/tunnelpanel/tunnelpanel/internal/logutil"
)

// SystemAccountManager is the OS-facing side of the account lifecycle.
// Mutations report failure as false rather than an error, matching the
// convention of the underlying user administration commands.
type SystemAccountManager interface {
	CreateAccount(ctx context.Context, username, password string) bool
	DeleteAccount(ctx context.Context, username string) bool
	SetLocked(ctx context.Context, username string, locked bool) bool
	CountActiveSessions(ctx context.Context, username string) int
}

// AccountStore is the record-store side. Implementations must return
// database.ErrDuplicate and database.ErrNotFound as distinguishable errors.
type AccountStore interface {
	Insert(acct *database.SSHAccount) error
	GetByUsername(username string) (*database.SSHAccount, error)
	UpdateActive(username string, active bool) error
	Delete(username string) error
	ListAll() ([]database.SSHAccount, error)
}

// AccountOrchestrator coordinates the record store and the OS so that a row
// exists iff the matching OS account is intended to exist.
type AccountOrchestrator struct {
	store  AccountStore
	system SystemAccountManager
}

func NewAccountOrchestrator(store AccountStore, system SystemAccountManager) *AccountOrchestrator {
	return &AccountOrchestrator{store: store, system: system}
}

var usernamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// CreateAccountInput is the validated request for Create. MaxLogin values
// below 1 fall back to the default of a single session.
type CreateAccountInput struct {
	Username   string
	Password   string
	ExpiryDate time.Time
	MaxLogin   int
	OwnerID    uint
}

func (in *CreateAccountInput) validate() *OpError {
	if in.Username == "" || in.Password == "" || in.ExpiryDate.IsZero() {
		return opErr(KindInvalidInput, "Username, password, and expiry date are required.")
	}
	if !usernamePattern.MatchString(in.Username) {
		return opErr(KindInvalidInput, "Username must be a valid login name.")
	}
	if in.MaxLogin < 1 {
		in.MaxLogin = 1
	}
	return nil
}

// Create provisions the OS account first, then inserts the row. If the
// insert fails the OS account is removed again as a best-effort
// compensation, so a failed Create leaves neither side populated.
func (o *AccountOrchestrator) Create(ctx context.Context, in CreateAccountInput) (*database.SSHAccount, *OpError) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Seal the credential before any side effect so a sealing failure
	// needs no compensation.
	sealed, err := crypto.Encrypt(in.Password)
	if err != nil {
		log.Printf("orchestrator: seal credential for %s: %v", logutil.SanitizeForLog(in.Username), err)
		return nil, opErr(KindRecordInsertFailed, "Failed to create SSH account.")
	}

	if !o.system.CreateAccount(ctx, in.Username, in.Password) {
		return nil, opErr(KindSystemCreateFailed, "Failed to create system user.")
	}

	acct := &database.SSHAccount{
		Username:   in.Username,
		Password:   sealed,
		ExpiryDate: in.ExpiryDate,
		MaxLogin:   in.MaxLogin,
		IsActive:   true,
		UserID:     in.OwnerID,
	}
	if err := o.store.Insert(acct); err != nil {
		o.compensateCreate(ctx, in.Username)
		if errors.Is(err, database.ErrDuplicate) {
			return nil, opErr(KindDuplicateIdentifier, "SSH account with that username already exists.")
		}
		log.Printf("orchestrator: insert %s: %v", logutil.SanitizeForLog(in.Username), err)
		return nil, opErr(KindRecordInsertFailed, "Failed to create SSH account. The operation was rolled back.")
	}

	return acct, nil
}

// compensateCreate undoes the OS-side half of a Create whose insert failed.
// Its own failure never changes the result of the primary operation; it is
// surfaced as a critical inconsistency for operator attention instead.
func (o *AccountOrchestrator) compensateCreate(ctx context.Context, username string) {
	if !o.system.DeleteAccount(ctx, username) {
		log.Printf("CRITICAL: inconsistent state: compensating deletion of system user %s failed after insert failure",
			logutil.SanitizeForLog(username))
		return
	}
	log.Printf("orchestrator: rolled back system user %s after insert failure", logutil.SanitizeForLog(username))
}

// Toggle flips the activation flag, locking or unlocking the OS account
// first. When the OS-side change fails the store is left untouched; when the
// store update fails after the OS change succeeded, the OS change is
// deliberately NOT rolled back — unlocking on a write failure could mask the
// true state — and the divergence is logged.
func (o *AccountOrchestrator) Toggle(ctx context.Context, username string) (*database.SSHAccount, *OpError) {
	acct, err := o.store.GetByUsername(username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, opErr(KindNotFound, "Account not found.")
		}
		log.Printf("orchestrator: lookup %s: %v", logutil.SanitizeForLog(username), err)
		return nil, opErr(KindRecordUpdateFailed, "Failed to toggle SSH account.")
	}

	newActive := !acct.IsActive
	if !o.system.SetLocked(ctx, username, !newActive) {
		return nil, opErr(KindSystemUpdateFailed, "Failed to update system user status.")
	}

	if err := o.store.UpdateActive(username, newActive); err != nil {
		log.Printf("CRITICAL: inconsistent state: system user %s lock state changed but store update failed: %v",
			logutil.SanitizeForLog(username), err)
		return nil, opErr(KindRecordUpdateFailed, "Failed to toggle SSH account.")
	}

	acct.IsActive = newActive
	return acct, nil
}

// Delete removes the row first, then the OS account. A missing or
// undeletable row stops the operation before any OS call. An OS deletion
// failure after the row is gone still counts as success for the caller — an
// orphaned OS user is recoverable by an operator, a ghost row blocking
// re-creation is not — but is logged as critical.
func (o *AccountOrchestrator) Delete(ctx context.Context, username string) *OpError {
	if err := o.store.Delete(username); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return opErr(KindNotFound, "Account not found.")
		}
		log.Printf("orchestrator: delete row %s: %v", logutil.SanitizeForLog(username), err)
		return opErr(KindRecordDeleteFailed, "Failed to delete SSH account.")
	}

	if !o.system.DeleteAccount(ctx, username) {
		log.Printf("CRITICAL: failed to delete system user %s, but the database entry was removed",
			logutil.SanitizeForLog(username))
	}
	return nil
}

// EnrichedAccount is an account row plus its live session count.
type EnrichedAccount struct {
	database.SSHAccount
	ActiveConnections int `json:"active_connections"`
}

// ListEnriched returns all rows, newest first, each annotated with the
// number of active OS sessions. Session counting fans out concurrently and
// fails open: a probe failure reads as zero sessions and never hides the
// row.
func (o *AccountOrchestrator) ListEnriched(ctx context.Context) ([]EnrichedAccount, *OpError) {
	accounts, err := o.store.ListAll()
	if err != nil {
		log.Printf("orchestrator: list accounts: %v", err)
		return nil, opErr(KindRecordUpdateFailed, "Failed to retrieve SSH accounts.")
	}

	enriched := make([]EnrichedAccount, len(accounts))
	var wg sync.WaitGroup
	for i := range accounts {
		enriched[i].SSHAccount = accounts[i]
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			enriched[i].ActiveConnections = o.system.CountActiveSessions(ctx, username)
		}(i, accounts[i].Username)
	}
	wg.Wait()

	return enriched, nil
}
