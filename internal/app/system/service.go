// Package system manages the lifecycle of long-running components.
package system

import "context"

// Service is a lifecycle-managed component. Background workers register with
// the Manager so the application can start and stop them deterministically.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
