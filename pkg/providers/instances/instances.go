package instances

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/samber/lo"
)

// Watcher discovers EC2 instances living inside the root VPC
type Watcher struct {
	instanceAPI SDKInstancesOps
}

// SDKInstancesOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKInstancesOps interface {
	ec2.DescribeInstancesAPIClient
	TerminateInstances(context.Context, *ec2.TerminateInstancesInput, ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// NewWatcher creates a new Instance Watcher
func NewWatcher(instanceAPI SDKInstancesOps) Watcher {
	return Watcher{
		instanceAPI: instanceAPI,
	}
}

// List returns refs for every non-terminated instance in the VPC
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeInstancesPaginator(w.instanceAPI, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"pending", "running", "stopping", "stopped"},
			},
		},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances: %w", err)
		}
		refs = append(refs, lo.FlatMap(page.Reservations, func(sdkReservation ec2types.Reservation, _ int) []catalog.ResourceRef {
			return lo.Map(sdkReservation.Instances, func(sdkInstance ec2types.Instance, _ int) catalog.ResourceRef {
				return catalog.ResourceRef{
					Kind: catalog.Instance,
					ID:   lo.FromPtr(sdkInstance.InstanceId),
					Tags: tagutils.EC2TagsToMap(sdkInstance.Tags),
				}
			})
		})...)
	}
	return refs, nil
}

// Delete terminates the instance. Termination is asynchronous, so callers must
// follow up with WaitDeleted before removing the instance's subnet or groups.
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.instanceAPI.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{ref.ID}})
	return err
}

// WaitDeleted blocks until the instance reaches the terminated state
func (w Watcher) WaitDeleted(ctx context.Context, ref catalog.ResourceRef, timeout time.Duration) error {
	waiter := ec2.NewInstanceTerminatedWaiter(w.instanceAPI)
	return waiter.Wait(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{ref.ID}}, timeout)
}
