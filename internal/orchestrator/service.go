package orchestrator

import (
	"context"
	"log"

	"github.com/tunnelpanel/tunnelpanel/internal/services"
)

// TunnelServiceManager drives the auxiliary tunnel daemons.
type TunnelServiceManager interface {
	Enable(ctx context.Context, kind string, port int) error
	Disable(ctx context.Context, kind string, port int, restoreSSHD bool) error
	Status(ctx context.Context, kind string) (services.Status, error)
}

// ServiceToggleOrchestrator validates service toggle requests and maps the
// manager's failures into the operation error taxonomy.
type ServiceToggleOrchestrator struct {
	services TunnelServiceManager
}

func NewServiceToggleOrchestrator(mgr TunnelServiceManager) *ServiceToggleOrchestrator {
	return &ServiceToggleOrchestrator{services: mgr}
}

var knownKinds = map[string]bool{
	services.KindStunnel:  true,
	services.KindDropbear: true,
	services.KindV2Ray:    true,
}

func validateServiceInput(kind string, port int) *OpError {
	if !knownKinds[kind] {
		return opErr(KindInvalidInput, "Unknown service kind.")
	}
	if port < 1 || port > 65535 {
		return opErr(KindInvalidInput, "Port must be between 1 and 65535.")
	}
	return nil
}

func (o *ServiceToggleOrchestrator) Enable(ctx context.Context, kind string, port int) *OpError {
	if err := validateServiceInput(kind, port); err != nil {
		return err
	}
	if err := o.services.Enable(ctx, kind, port); err != nil {
		log.Printf("orchestrator: enable %s on port %d: %v", kind, port, err)
		return opErr(KindSystemUpdateFailed, "Failed to enable service.")
	}
	return nil
}

func (o *ServiceToggleOrchestrator) Disable(ctx context.Context, kind string, port int, restorePrimary bool) *OpError {
	if err := validateServiceInput(kind, port); err != nil {
		return err
	}
	if err := o.services.Disable(ctx, kind, port, restorePrimary); err != nil {
		log.Printf("orchestrator: disable %s: %v", kind, err)
		return opErr(KindSystemUpdateFailed, "Failed to disable service.")
	}
	return nil
}

// Status reads the live service state. A failing probe reads as inactive:
// for this panel "unknown" and "not providing service" are operationally the
// same thing, so the error is logged rather than propagated.
func (o *ServiceToggleOrchestrator) Status(ctx context.Context, kind string) (services.Status, *OpError) {
	if !knownKinds[kind] {
		return services.StatusInactive, opErr(KindInvalidInput, "Unknown service kind.")
	}
	status, err := o.services.Status(ctx, kind)
	if err != nil {
		log.Printf("orchestrator: status %s: %v", kind, err)
		return services.StatusInactive, nil
	}
	return status, nil
}
