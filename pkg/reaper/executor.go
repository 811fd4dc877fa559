package reaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/logging"
	"github.com/bwagner5/vpcreaper/pkg/plans"
	"github.com/bwagner5/vpcreaper/pkg/utils/awserrors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Teardown executes a TeardownPlan wave by wave. Within a wave, refs are
// processed by a bounded worker pool; across waves execution is strictly
// sequential. Per-resource failures never abort the wave and per-wave failures
// never abort the plan: everything terminal lands in the report and a human
// reads it afterwards. Only context cancellation stops the run early, checked
// between waves and between retry attempts so in-flight deletions finish.
func (r Reaper) Teardown(ctx context.Context, plan plans.TeardownPlan) (*plans.TeardownReport, error) {
	log := logging.FromContext(ctx)
	report := plans.NewTeardownReport()
	if plan.RootAbsent() {
		log.Debug("root vpc not found, nothing to tear down", "vpc-id", plan.Metadata.VpcID)
		report.Root = plans.OutcomeAlreadyAbsent
		return report, nil
	}

	var mu sync.Mutex
	record := func(attempt plans.DeletionAttempt) {
		if attempt.Outcome == "" {
			// the run was cancelled before the ref reached a terminal outcome
			return
		}
		mu.Lock()
		defer mu.Unlock()
		report.Record(attempt)
	}

	for _, wave := range plan.Spec.Waves {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.scrubIfNeeded(ctx, wave, plan.Metadata.VpcID)
		log.Debug("executing wave", "wave", wave.Number, "kinds", wave.Kinds(), "resources", len(wave.Refs))
		group := errgroup.Group{}
		group.SetLimit(r.opts.Concurrency)
		for _, ref := range wave.Refs {
			ref := ref
			group.Go(func() error {
				record(r.teardownRef(ctx, ref, plan.Metadata.VpcID))
				return nil
			})
		}
		// workers record their own outcomes and never return errors
		_ = group.Wait()
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	rootAttempt := r.teardownRef(ctx, plan.Spec.Root, plan.Metadata.VpcID)
	report.Root = rootAttempt.Outcome
	report.RootErr = rootAttempt.Err
	if report.Root == plans.OutcomePermanentFailure {
		if failedKinds := report.FailedKinds(); len(failedKinds) > 0 {
			report.RootErr = fmt.Errorf("failed to delete vpc %s, likely blocked by kinds with failed deletions %v: %w",
				plan.Spec.Root.ID, failedKinds, rootAttempt.Err)
		}
	}
	return report, nil
}

// scrubIfNeeded runs the cross-reference scrub pre-pass when the wave
// contains a kind that permits same-kind references (security groups whose
// rules point at sibling groups). A failed revoke is tolerated: the group
// deletion that follows will retry and surface a clear failure if the
// reference truly remains.
func (r Reaper) scrubIfNeeded(ctx context.Context, wave plans.Wave, vpcID string) {
	needsScrub := lo.SomeBy(wave.Refs, func(ref catalog.ResourceRef) bool {
		return catalog.Get(ref.Kind).RequiresScrub
	})
	if !needsScrub {
		return
	}
	log := logging.FromContext(ctx)
	revoked, err := r.sgWatcher.RevokeCrossReferences(ctx, vpcID)
	if err != nil {
		log.Warn("failed to revoke some cross-referencing security group rules", "error", err)
	}
	if revoked > 0 {
		log.Debug("revoked cross-referencing security group rules", "rules", revoked)
	}
}

// teardownRef drives one resource to a terminal outcome:
// Discovered -> (DetachIfRequired) -> DeleteAttempted ->
// {Success | AlreadyAbsent | Retrying -> DeleteAttempted | PermanentFailure}
func (r Reaper) teardownRef(ctx context.Context, ref catalog.ResourceRef, vpcID string) plans.DeletionAttempt {
	log := logging.FromContext(ctx).With("kind", ref.Kind, "id", ref.ID)
	entry := catalog.Get(ref.Kind)
	client := r.clients[ref.Kind]
	attempt := plans.DeletionAttempt{Ref: ref}
	for attempt.Attempt = 1; ; attempt.Attempt++ {
		if ctx.Err() != nil {
			return attempt
		}
		err := r.deleteOnce(ctx, entry, client, ref, vpcID)
		switch {
		case err == nil:
			attempt.Outcome = plans.OutcomeSuccess
			log.Debug("deleted resource", "attempts", attempt.Attempt)
			return attempt
		case awserrors.IsNotFound(err):
			attempt.Outcome = plans.OutcomeAlreadyAbsent
			log.Debug("resource already gone")
			return attempt
		case awserrors.IsRetryable(err) && attempt.Attempt < r.opts.MaxAttempts:
			delay := r.opts.backoff(attempt.Attempt)
			log.Debug("transient failure, backing off", "delay", delay, "error", err)
			if !sleep(ctx, delay) {
				return attempt
			}
		default:
			attempt.Outcome = plans.OutcomePermanentFailure
			attempt.Err = err
			log.Warn("failed to delete resource", "attempts", attempt.Attempt, "error", err)
			return attempt
		}
	}
}

// deleteOnce performs a single detach+delete+wait cycle for a ref
func (r Reaper) deleteOnce(ctx context.Context, entry catalog.Entry, client kindClient, ref catalog.ResourceRef, vpcID string) error {
	if entry.RequiresDetach {
		if err := client.(detacher).Detach(ctx, ref, vpcID); err != nil &&
			!awserrors.IsNotAttached(err) && !awserrors.IsNotFound(err) {
			return err
		}
	}
	if err := client.Delete(ctx, ref); err != nil {
		return err
	}
	if entry.RequiresWait {
		if err := client.(deletionWaiter).WaitDeleted(ctx, ref, r.opts.WaitTimeout); err != nil {
			return fmt.Errorf("deletion did not reach a terminal state: %w", err)
		}
	}
	return nil
}

// sleep blocks for the given duration or until the context is cancelled,
// returning false on cancellation
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
