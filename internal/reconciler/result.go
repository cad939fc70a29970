// Package reconciler applies the desired DNS state read from the inventory
// to the record store: address upserts, service upserts and address pruning.
package reconciler

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
)

// ActionType represents the type of reconciliation action.
type ActionType string

const (
	// ActionCreate indicates a record will be/was inserted.
	ActionCreate ActionType = "create"
	// ActionUpdate indicates a record's content will be/was rewritten.
	ActionUpdate ActionType = "update"
	// ActionDelete indicates a record will be/was deleted by the prune.
	ActionDelete ActionType = "delete"
	// ActionSkip indicates nothing was written for this entry.
	ActionSkip ActionType = "skip"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusPending indicates the action has not been executed yet.
	StatusPending ActionStatus = "pending"
	// StatusSuccess indicates the action completed successfully.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the action failed.
	StatusFailed ActionStatus = "failed"
	// StatusSkipped indicates the entry was not applied (see Reason).
	StatusSkipped ActionStatus = "skipped"
	// StatusUnchanged indicates the stored record already matched.
	StatusUnchanged ActionStatus = "unchanged"
)

// Skip reasons, also used as metric labels.
const (
	ReasonUnchanged      = "unchanged"
	ReasonOutsideRoot    = "outside_root"
	ReasonNoDNSName      = "no_dns_name"
	ReasonInvalidName    = "invalid_name"
	ReasonNoAddress      = "no_address"
	ReasonNoPort         = "no_port"
	ReasonBadContent     = "unparseable_content"
	ReasonNotManaged     = "not_managed"
	ReasonDuplicateInput = "duplicate_input"
)

// Pass names.
const (
	PassAddresses = "addresses"
	PassServices  = "services"
	PassPrune     = "prune"
)

// Action represents a single reconciliation action on a DNS record.
type Action struct {
	// Type is the action type.
	Type ActionType

	// Status is the outcome of the action.
	Status ActionStatus

	// Pass is the pass that produced the action.
	Pass string

	// Name is the record name.
	Name string

	// RecordType is A, AAAA or SRV.
	RecordType store.RecordType

	// Content is the desired (or, for deletes, the stored) record content.
	Content string

	// PrevContent is the content replaced by an update.
	PrevContent string

	// RecordID is the id of the record touched, when known.
	RecordID int64

	// ZoneID is the zone of the record, when known.
	ZoneID int64

	// Reason explains skips.
	Reason string

	// Error contains the error message if Status is StatusFailed.
	Error string

	// DryRun indicates this action was not made durable.
	DryRun bool
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	status := string(a.Status)
	if a.DryRun && a.Status == StatusSuccess {
		status = "dry-run"
	}

	s := fmt.Sprintf("[%s] %s %s %s %q", status, a.Type, a.RecordType, a.Name, a.Content)
	if a.PrevContent != "" {
		s += fmt.Sprintf(" (was %q)", a.PrevContent)
	}
	if a.Reason != "" {
		s += " reason=" + a.Reason
	}
	if a.Error != "" {
		s += ": " + a.Error
	}
	return s
}

// Result holds the result of one or more reconciliation passes.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// StartTime is when reconciliation started.
	StartTime time.Time

	// EndTime is when reconciliation completed.
	EndTime time.Time

	// ZonesLoaded is the number of zones in the index.
	ZonesLoaded int

	// AddressesScanned is the number of inventory IP addresses examined.
	AddressesScanned int

	// ServicesScanned is the number of inventory services examined.
	ServicesScanned int

	// Actions contains all actions taken (or planned in dry-run).
	Actions []Action

	// DryRun indicates if this was a dry-run (no changes committed).
	DryRun bool

	// RolledBack is set when a pass failed and its writes were discarded.
	RolledBack bool
}

// NewResult creates a new Result with the start time set to now.
func NewResult(dryRun bool) *Result {
	return &Result{
		StartTime: time.Now(),
		Actions:   make([]Action, 0),
		DryRun:    dryRun,
	}
}

// Complete marks the result as complete with the end time set to now.
func (r *Result) Complete() {
	r.EndTime = time.Now()
}

// Duration returns the total reconciliation duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(action Action) {
	action.DryRun = r.DryRun
	r.Actions = append(r.Actions, action)
}

// Merge appends the actions and counters of a pass result.
func (r *Result) Merge(pass *Result) {
	if pass == nil {
		return
	}
	r.Actions = append(r.Actions, pass.Actions...)
	r.AddressesScanned += pass.AddressesScanned
	r.ServicesScanned += pass.ServicesScanned
	r.RolledBack = r.RolledBack || pass.RolledBack
}

// Created returns all successful create actions.
func (r *Result) Created() []Action {
	return r.filterActions(ActionCreate, StatusSuccess)
}

// Updated returns all successful update actions.
func (r *Result) Updated() []Action {
	return r.filterActions(ActionUpdate, StatusSuccess)
}

// Deleted returns all successful delete actions.
func (r *Result) Deleted() []Action {
	return r.filterActions(ActionDelete, StatusSuccess)
}

// Unchanged returns the no-op actions for records already in the desired state.
func (r *Result) Unchanged() []Action {
	return r.filterActions(ActionSkip, StatusUnchanged)
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var failed []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

// Skipped returns the entries that were not applied. Unchanged records are
// not counted as skipped.
func (r *Result) Skipped() []Action {
	return r.filterActions(ActionSkip, StatusSkipped)
}

func (r *Result) filterActions(actionType ActionType, status ActionStatus) []Action {
	var filtered []Action
	for _, a := range r.Actions {
		if a.Type == actionType && a.Status == status {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// CreatedCount returns the number of records created (or would be in dry-run).
func (r *Result) CreatedCount() int {
	return len(r.Created())
}

// UpdatedCount returns the number of records updated.
func (r *Result) UpdatedCount() int {
	return len(r.Updated())
}

// DeletedCount returns the number of records deleted (or would be in dry-run).
func (r *Result) DeletedCount() int {
	return len(r.Deleted())
}

// FailedCount returns the number of failed actions.
func (r *Result) FailedCount() int {
	return len(r.Failed())
}

// HasErrors returns true if any actions failed.
func (r *Result) HasErrors() bool {
	return r.FailedCount() > 0
}

// Summary returns a human-readable summary of the reconciliation.
func (r *Result) Summary() string {
	var sb strings.Builder

	mode := "applied"
	switch {
	case r.RolledBack:
		mode = "rolled back"
	case r.DryRun:
		mode = "dry-run"
	}

	fmt.Fprintf(&sb, "Reconciliation complete (%s) in %s\n", mode, r.Duration().Round(time.Millisecond))
	if r.RunID != "" {
		fmt.Fprintf(&sb, "  Run: %s\n", r.RunID)
	}
	fmt.Fprintf(&sb, "  Zones loaded: %d\n", r.ZonesLoaded)
	fmt.Fprintf(&sb, "  Addresses scanned: %d\n", r.AddressesScanned)
	fmt.Fprintf(&sb, "  Services scanned: %d\n", r.ServicesScanned)
	fmt.Fprintf(&sb, "  Records created: %d\n", r.CreatedCount())
	fmt.Fprintf(&sb, "  Records updated: %d\n", r.UpdatedCount())
	fmt.Fprintf(&sb, "  Records deleted: %d\n", r.DeletedCount())
	fmt.Fprintf(&sb, "  Unchanged: %d\n", len(r.Unchanged()))
	fmt.Fprintf(&sb, "  Skipped: %d\n", len(r.Skipped()))

	if r.HasErrors() {
		fmt.Fprintf(&sb, "  Failed: %d\n", r.FailedCount())
		for _, a := range r.Failed() {
			fmt.Fprintf(&sb, "    - %s\n", a.String())
		}
	}

	return sb.String()
}
