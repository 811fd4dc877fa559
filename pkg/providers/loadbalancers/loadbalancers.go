package loadbalancers

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/samber/lo"
)

// Watcher discovers ELBv2 load balancers living inside the root VPC
type Watcher struct {
	elbAPI SDKLoadBalancersOps
}

// SDKLoadBalancersOps is an interface that combines the necessary ELBv2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKLoadBalancersOps interface {
	elbv2.DescribeLoadBalancersAPIClient
	DeleteLoadBalancer(context.Context, *elbv2.DeleteLoadBalancerInput, ...func(*elbv2.Options)) (*elbv2.DeleteLoadBalancerOutput, error)
}

// NewWatcher creates a new LoadBalancer Watcher
func NewWatcher(elbAPI SDKLoadBalancersOps) Watcher {
	return Watcher{
		elbAPI: elbAPI,
	}
}

// List returns refs for every load balancer in the VPC.
// DescribeLoadBalancers has no VPC filter, so results are filtered client-side.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := elbv2.NewDescribeLoadBalancersPaginator(w.elbAPI, &elbv2.DescribeLoadBalancersInput{})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}
		refs = append(refs, lo.FilterMap(page.LoadBalancers, func(sdkLB elbv2types.LoadBalancer, _ int) (catalog.ResourceRef, bool) {
			return catalog.ResourceRef{
				Kind: catalog.LoadBalancer,
				ID:   lo.FromPtr(sdkLB.LoadBalancerArn),
				Tags: map[string]string{"Name": lo.FromPtr(sdkLB.LoadBalancerName)},
			}, lo.FromPtr(sdkLB.VpcId) == vpcID
		})...)
	}
	return refs, nil
}

// Delete deletes the load balancer. Deletion is asynchronous and its network
// interfaces linger until it completes, so callers must follow up with WaitDeleted.
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.elbAPI.DeleteLoadBalancer(ctx, &elbv2.DeleteLoadBalancerInput{LoadBalancerArn: aws.String(ref.ID)})
	return err
}

// WaitDeleted blocks until the load balancer is gone
func (w Watcher) WaitDeleted(ctx context.Context, ref catalog.ResourceRef, timeout time.Duration) error {
	waiter := elbv2.NewLoadBalancersDeletedWaiter(w.elbAPI)
	return waiter.Wait(ctx, &elbv2.DescribeLoadBalancersInput{LoadBalancerArns: []string{ref.ID}}, timeout)
}
