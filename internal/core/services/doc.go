// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Every service tolerates nil stores: operations that need one
// return domain.ErrOffline, so offline projects still support the
// pure parameter-space operations.
package services
