package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/miekg/dns"

	"github.com/alexbarcelo/netbox-dns-handler/internal/inventory"
	"github.com/alexbarcelo/netbox-dns-handler/internal/metrics"
	"github.com/alexbarcelo/netbox-dns-handler/internal/store"
	"github.com/alexbarcelo/netbox-dns-handler/internal/zone"
)

// ServiceInstance is one desired SRV record: a target host serving on a
// port under a shared record name such as "_ldap._tcp.example.org".
type ServiceInstance struct {
	RecordName string
	TargetName string
	Port       int
}

// Content returns the SRV content "<weight> <port> <target>".
func (s ServiceInstance) Content(weight int) string {
	return fmt.Sprintf("%d %d %s", weight, s.Port, s.TargetName)
}

// ServiceReconciler upserts SRV records. Instances sharing a record name
// are matched independently by target. SRV records are never pruned.
type ServiceReconciler struct {
	base
}

// NewServiceReconciler creates a ServiceReconciler writing to db and
// resolving zones with index.
func NewServiceReconciler(db store.DB, index *zone.Index, opts ...Option) *ServiceReconciler {
	return &ServiceReconciler{base: newBase(db, index, opts)}
}

// zoneFor resolves the zone of a new SRV record.
func (s *ServiceReconciler) zoneFor(inst ServiceInstance, content string) (int64, error) {
	if s.config.ServiceZoneSource == ZoneFromRecordName {
		return s.index.Resolve(inst.RecordName)
	}
	return s.index.Resolve(content)
}

// Upsert makes st hold an SRV record named inst.RecordName for the
// instance's target with content "<weight> <port> <target>". The existing
// record is found by name and target suffix; other targets under the same
// name are not touched. The returned error is non-nil only for store
// failures.
func (s *ServiceReconciler) Upsert(ctx context.Context, st store.Store, inst ServiceInstance, weight int) (Action, error) {
	content := inst.Content(weight)
	action := Action{
		Pass:       PassServices,
		Name:       inst.RecordName,
		RecordType: store.RecordTypeSRV,
		Content:    content,
	}

	existing, err := st.FindServiceRecord(ctx, inst.RecordName, inst.TargetName)
	switch {
	case err == nil:
		action.RecordID = existing.ID
		action.ZoneID = existing.ZoneID

		if existing.Content == content {
			s.logger.Debug("service record exists and is valid",
				slog.String("name", inst.RecordName),
				slog.String("target", inst.TargetName),
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
		s.logger.Info("service record outdated, updated",
			slog.String("name", inst.RecordName),
			slog.String("from", existing.Content),
			slog.String("to", content),
		)
		return action, nil

	case store.IsNotFound(err):
		action.Type = ActionCreate

		zoneID, err := s.zoneFor(inst, content)
		if err != nil {
			s.logger.Warn("cannot resolve zone for service record, ignoring",
				slog.String("name", inst.RecordName),
				slog.String("content", content),
				slog.String("error", err.Error()),
			)
			action.Type = ActionSkip
			action.Status = StatusSkipped
			action.Reason = ReasonOutsideRoot
			action.Error = err.Error()
			return action, nil
		}

		rec := &store.Record{
			ZoneID:   zoneID,
			Name:     inst.RecordName,
			Type:     store.RecordTypeSRV,
			Content:  content,
			TTL:      s.config.TTL,
			Priority: s.config.Priority,
		}
		if err := st.Insert(ctx, rec); err != nil {
			action.Status = StatusFailed
			action.Error = err.Error()
			return action, err
		}
		action.Status = StatusSuccess
		action.RecordID = rec.ID
		action.ZoneID = zoneID
		s.logger.Info("created service record",
			slog.String("name", inst.RecordName),
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

// InstanceFor derives the desired instance of svc under recordName: the
// target is the DNS name of the service's first address and the port is
// its first port.
func InstanceFor(recordName string, svc inventory.Service) (ServiceInstance, error) {
	item := svc.Display
	if svc.URL != "" {
		item = fmt.Sprintf("%s @ %s", svc.Display, svc.URL)
	}

	if len(svc.IPAddresses) == 0 {
		return ServiceInstance{}, &SkippableInputError{Item: item, Reason: ReasonNoAddress, Detail: "service has no assigned ip address"}
	}
	target := svc.IPAddresses[0].DNSName
	if target == "" {
		return ServiceInstance{}, &SkippableInputError{
			Item:   item,
			Reason: ReasonNoDNSName,
			Detail: fmt.Sprintf("address %s has no dns name", svc.IPAddresses[0].Address),
		}
	}
	if _, ok := dns.IsDomainName(target); !ok {
		return ServiceInstance{}, &SkippableInputError{Item: item, Reason: ReasonInvalidName, Detail: fmt.Sprintf("%q is not a valid domain name", target)}
	}
	if len(svc.Ports) == 0 {
		return ServiceInstance{}, &SkippableInputError{Item: item, Reason: ReasonNoPort, Detail: "service has no ports"}
	}

	return ServiceInstance{RecordName: recordName, TargetName: target, Port: svc.Ports[0]}, nil
}

// BatchUpsert upserts the SRV records of services under recordName in one
// transaction. Services lacking an address, DNS name or port are skipped
// with a diagnostic.
func (s *ServiceReconciler) BatchUpsert(ctx context.Context, recordName string, services []inventory.Service) (*Result, error) {
	start := time.Now()
	result := NewResult(s.config.DryRun)
	result.ServicesScanned = len(services)

	if _, ok := dns.IsDomainName(recordName); !ok || recordName == "" {
		return result, fmt.Errorf("%s pass: invalid record name %q", PassServices, recordName)
	}

	seen := make(map[string]int, len(services))

	err := s.inTx(ctx, PassServices, result, func(tx store.Store) error {
		for _, svc := range services {
			inst, err := InstanceFor(recordName, svc)
			if err != nil {
				s.logger.Warn("ignoring service", slog.String("record", recordName), slog.String("error", err.Error()))
				var skip *SkippableInputError
				if !errors.As(err, &skip) {
					return err
				}
				result.AddAction(Action{
					Type:       ActionSkip,
					Status:     StatusSkipped,
					Pass:       PassServices,
					Name:       recordName,
					RecordType: store.RecordTypeSRV,
					Reason:     skip.Reason,
					Error:      skip.Error(),
				})
				continue
			}

			if prev, dup := seen[inst.TargetName]; dup {
				if prev == inst.Port {
					s.logger.Debug("ignoring duplicate service",
						slog.String("name", recordName),
						slog.String("target", inst.TargetName),
					)
					result.AddAction(Action{
						Type:       ActionSkip,
						Status:     StatusSkipped,
						Pass:       PassServices,
						Name:       recordName,
						RecordType: store.RecordTypeSRV,
						Content:    inst.Content(s.config.SRVWeight),
						Reason:     ReasonDuplicateInput,
					})
					continue
				}
				s.logger.Warn("several services share a target under one record name; the last one wins",
					slog.String("name", recordName),
					slog.String("target", inst.TargetName),
					slog.Int("previous_port", prev),
					slog.Int("port", inst.Port),
				)
			}
			seen[inst.TargetName] = inst.Port

			action, err := s.Upsert(ctx, tx, inst, s.config.SRVWeight)
			result.AddAction(action)
			if err != nil {
				return fmt.Errorf("upserting SRV %s -> %s: %w", recordName, inst.TargetName, err)
			}
		}
		return nil
	})

	result.Complete()
	metrics.PassDuration.WithLabelValues(PassServices).Observe(time.Since(start).Seconds())
	recordMetrics(result)
	return result, err
}
