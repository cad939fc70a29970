package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/miekg/dns"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/metrics"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// AddressKey identifies a desired address record for pruning.
type AddressKey struct {
	Addr netip.Addr
	Name string
}

// AddressSet is the complete set of desired (address, name) pairs.
type AddressSet map[AddressKey]struct{}

// NewAddressSet builds the set from inventory addresses. Entries without a
// DNS name are left out.
func NewAddressSet(ips []inventory.IPAddress) AddressSet {
	set := make(AddressSet, len(ips))
	for _, ip := range ips {
		if ip.DNSName == "" {
			continue
		}
		set.Add(ip.Address, ip.DNSName)
	}
	return set
}

// Add inserts a pair.
func (s AddressSet) Add(addr netip.Addr, name string) {
	s[AddressKey{Addr: addr, Name: name}] = struct{}{}
}

// Has reports whether the pair is desired.
func (s AddressSet) Has(addr netip.Addr, name string) bool {
	_, ok := s[AddressKey{Addr: addr, Name: name}]
	return ok
}

// AddressReconciler upserts A/AAAA records and prunes the ones no longer
// in the inventory.
type AddressReconciler struct {
	base
}

// NewAddressReconciler creates an AddressReconciler writing to db and
// resolving zones with index.
func NewAddressReconciler(db store.DB, index *zone.Index, opts ...Option) *AddressReconciler {
	return &AddressReconciler{base: newBase(db, index, opts)}
}

// RecordTypeFor returns AAAA for IPv6 addresses, IPv4-mapped ones
// included, and A otherwise.
func RecordTypeFor(addr netip.Addr) store.RecordType {
	if addr.Is6() {
		return store.RecordTypeAAAA
	}
	return store.RecordTypeA
}

// Upsert makes st hold a record of the address family of addr for name with
// content addr. An existing record with the same name and type is updated
// in place; otherwise a record is inserted in the zone resolved from name.
// Names outside the root domain are skipped. The returned error is non-nil
// only for store failures.
func (a *AddressReconciler) Upsert(ctx context.Context, st store.Store, name string, addr netip.Addr) (Action, error) {
	rtype := RecordTypeFor(addr)
	content := addr.String()

	action := Action{
		Pass:       PassAddresses,
		Name:       name,
		RecordType: rtype,
		Content:    content,
	}

	if !a.index.Contains(name) {
		a.logger.Warn("name is outside the root domain, ignoring",
			slog.String("name", name),
			slog.String("root", a.index.Root().Name),
		)
		action.Type = ActionSkip
		action.Status = StatusSkipped
		action.Reason = ReasonOutsideRoot
		return action, nil
	}

	existing, err := st.FindAddressRecord(ctx, name, rtype)
	switch {
	case err == nil:
		action.RecordID = existing.ID
		action.ZoneID = existing.ZoneID

		if existing.Content == content {
			a.logger.Debug("record exists and is valid",
				slog.String("name", name),
				slog.String("type", string(rtype)),
			)
			action.Type = ActionSkip
			action.Status = StatusUnchanged
			action.Reason = ReasonUnchanged
			return action, nil
		}

		action.Type = ActionUpdate
		action.PrevContent = existing.Content
		if err := st.UpdateContent(ctx, existing.ID, content); err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			return action, err
		}
		action.Status = StatusSuccess
		a.logger.Info("record outdated, updated",
			slog.String("name", name),
			slog.String("type", string(rtype)),
			slog.String("from", existing.Content),
			slog.String("to", content),
		)
		return action, nil

	case store.IsNotFound(err):
		action.Type = ActionCreate

		zoneID, err := a.index.Resolve(name)
		if err != nil {
			action.Type = ActionSkip
			action.Status = StatusSkipped
			action.Reason = ReasonOutsideRoot
			action.Error = err.Error()
			return action, nil
		}

		rec := &store.Record{
			ZoneID:   zoneID,
			Name:     name,
			Type:     rtype,
			Content:  content,
			TTL:      a.config.TTL,
			Priority: a.config.Priority,
		}
		if err := st.Insert(ctx, rec); err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			return action, err
		}
		action.Status = StatusSuccess
		action.RecordID = rec.ID
		action.ZoneID = zoneID
		a.logger.Info("created record",
			slog.String("name", name),
			slog.String("type", string(rtype)),
			slog.String("content", content),
			slog.Int64("zone_id", zoneID),
		)
		return action, nil

	default:
		action.Type = ActionUpdate
		action.Status = StatusFailed
		action.Error = err.Error()
		return action, err
	}
}

// BatchUpsert upserts every inventory address in one transaction. Entries
// without a usable DNS name are skipped with a diagnostic. A store failure
// rolls the whole pass back and is returned along with the partial result.
func (a *AddressReconciler) BatchUpsert(ctx context.Context, ips []inventory.IPAddress) (*Result, error) {
	start := time.Now()
	result := NewResult(a.config.DryRun)
	result.AddressesScanned = len(ips)

	seen := make(map[string]string, len(ips))

	err := a.inTx(ctx, PassAddresses, result, func(tx store.Store) error {
		for _, ip := range ips {
			if err := validateAddress(ip); err != nil {
				a.skipInput(result, ip, err)
				continue
			}

			key := ip.DNSName + "/" + string(RecordTypeFor(ip.Address))
			if prev, dup := seen[key]; dup {
				if prev == ip.Address.String() {
					a.skipInput(result, ip, &SkippableInputError{
						Item:   ip.Address.String(),
						Reason: ReasonDuplicateInput,
						Detail: "already applied in this pass",
					})
					continue
				}
				a.logger.Warn("several addresses share a name and family; the last one wins",
					slog.String("name", ip.DNSName),
					slog.String("previous", prev),
					slog.String("address", ip.Address.String()),
				)
			}
			seen[key] = ip.Address.String()

			action, err := a.Upsert(ctx, tx, ip.DNSName, ip.Address)
			result.AddAction(action)
			if err != nil {
				return fmt.Errorf("upserting %s %s: %w", action.RecordType, ip.DNSName, err)
			}
		}
		return nil
	})

	result.Complete()
	metrics.PassDuration.WithLabelValues(PassAddresses).Observe(time.Since(start).Seconds())
	recordMetrics(result)
	return result, err
}

func validateAddress(ip inventory.IPAddress) *SkippableInputError {
	if ip.DNSName == "" {
		return &SkippableInputError{
			Item:   ip.Address.String(),
			Reason: ReasonNoDNSName,
			Detail: ip.Owner(),
		}
	}
	if _, ok := dns.IsDomainName(ip.DNSName); !ok {
		return &SkippableInputError{
			Item:   ip.Address.String(),
			Reason: ReasonInvalidName,
			Detail: fmt.Sprintf("%q is not a valid domain name", ip.DNSName),
		}
	}
	return nil
}

func (a *AddressReconciler) skipInput(result *Result, ip inventory.IPAddress, err *SkippableInputError) {
	a.logger.Warn("ignoring ip address",
		slog.String("address", ip.Address.String()),
		slog.String("dns_name", ip.DNSName),
		slog.String("reason", err.Reason),
		slog.String("detail", err.Detail),
	)
	result.AddAction(Action{
		Type:       ActionSkip,
		Status:     StatusSkipped,
		Pass:       PassAddresses,
		Name:       ip.DNSName,
		RecordType: RecordTypeFor(ip.Address),
		Content:    ip.Address.String(),
		Reason:     err.Reason,
		Error:      err.Error(),
	})
}

// Prune deletes every stored A/AAAA record whose (address, name) pair is not
// in valid. valid must be the complete desired set: anything missing from
// it is deleted. Records outside the configured prune scope and records
// whose content is not an address are kept. Deletes happen in one batch.
func (a *AddressReconciler) Prune(ctx context.Context, valid AddressSet) (*Result, error) {
	start := time.Now()
	result := NewResult(a.config.DryRun)

	err := a.inTx(ctx, PassPrune, result, func(tx store.Store) error {
		records, err := tx.ListAddressRecords(ctx)
		if err != nil {
			return fmt.Errorf("listing address records: %w", err)
		}

		a.warnDuplicates(records)

		var (
			ids     []int64
			pending []Action
		)
		for _, rec := range records {
			action := Action{
				Pass:       PassPrune,
				Name:       rec.Name,
				RecordType: rec.Type,
				Content:    rec.Content,
				RecordID:   rec.ID,
				ZoneID:     rec.ZoneID,
			}

			addr, err := inventory.ParseAddress(rec.Content)
			if err != nil {
				a.logger.Warn("keeping record with unparseable content",
					slog.Int64("id", rec.ID),
					slog.String("name", rec.Name),
					slog.String("content", rec.Content),
				)
				action.Type = ActionSkip
				action.Status = StatusSkipped
				action.Reason = ReasonBadContent
				result.AddAction(action)
				continue
			}

			if valid.Has(addr, rec.Name) {
				continue
			}

			if scope := a.config.PruneScope; scope != nil && !scope.Matches(rec.Name) {
				a.logger.Debug("keeping record outside prune scope",
					slog.String("name", rec.Name),
					slog.String("content", rec.Content),
				)
				action.Type = ActionSkip
				action.Status = StatusSkipped
				action.Reason = ReasonNotManaged
				result.AddAction(action)
				continue
			}

			a.logger.Info("record marked for deletion",
				slog.String("name", rec.Name),
				slog.String("content", rec.Content),
				slog.Int64("id", rec.ID),
			)
			action.Type = ActionDelete
			action.Status = StatusPending
			ids = append(ids, rec.ID)
			pending = append(pending, action)
		}

		a.logger.Info("pruning address records", slog.Int("count", len(ids)))
		if len(ids) == 0 {
			return nil
		}

		status, errMsg := StatusSuccess, ""
		delErr := tx.DeleteByIDs(ctx, ids...)
		if delErr != nil {
			status, errMsg = StatusFailed, delErr.Error()
		}
		for _, action := range pending {
			action.Status = status
			action.Error = errMsg
			result.AddAction(action)
		}
		if delErr != nil {
			return fmt.Errorf("deleting %d records: %w", len(ids), delErr)
		}
		return nil
	})

	result.Complete()
	metrics.PassDuration.WithLabelValues(PassPrune).Observe(time.Since(start).Seconds())
	recordMetrics(result)
	return result, err
}

// warnDuplicates logs (name, type) pairs stored more than once. Only the
// lowest id of such a pair is updated by Upsert.
func (a *AddressReconciler) warnDuplicates(records []store.Record) {
	first := make(map[string]int64, len(records))
	for _, rec := range records {
		key := rec.Name + "/" + string(rec.Type)
		id, ok := first[key]
		if !ok {
			first[key] = rec.ID
			continue
		}
		a.logger.Warn("duplicate address record; only the lowest id is managed",
			slog.String("name", rec.Name),
			slog.String("type", string(rec.Type)),
			slog.Int64("managed_id", min(id, rec.ID)),
			slog.Int64("duplicate_id", max(id, rec.ID)),
		)
	}
}
