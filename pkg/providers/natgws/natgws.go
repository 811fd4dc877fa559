package natgws

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

// Watcher discovers NAT Gateways living inside the root VPC
type Watcher struct {
	ec2API SDKNATGWOps
}

// SDKNATGWOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKNATGWOps interface {
	ec2.DescribeNatGatewaysAPIClient
	DeleteNatGateway(context.Context, *ec2.DeleteNatGatewayInput, ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error)
}

// NewWatcher creates a new NATGateway Watcher
func NewWatcher(ec2API SDKNATGWOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every NAT Gateway in the VPC that is not already
// deleting or deleted
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeNatGatewaysPaginator(w.ec2API, &ec2.DescribeNatGatewaysInput{
		Filter: []ec2types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
			{
				Name:   aws.String("state"),
				Values: []string{"pending", "available", "failed"},
			},
		},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe NAT Gateways: %w", err)
		}
		refs = append(refs, lo.Map(page.NatGateways, func(sdkNATGW ec2types.NatGateway, _ int) catalog.ResourceRef {
			return catalog.ResourceRef{
				Kind: catalog.NatGateway,
				ID:   lo.FromPtr(sdkNATGW.NatGatewayId),
				Tags: tagutils.EC2TagsToMap(sdkNATGW.Tags),
			}
		})...)
	}
	return refs, nil
}

// Delete deletes the NAT Gateway. Deletion is asynchronous and the gateway's
// network interfaces linger until it completes, so callers must follow up
// with WaitDeleted.
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.ec2API.DeleteNatGateway(ctx, &ec2.DeleteNatGatewayInput{NatGatewayId: aws.String(ref.ID)})
	return err
}

// WaitDeleted blocks until the NAT Gateway reaches the deleted state
func (w Watcher) WaitDeleted(ctx context.Context, ref catalog.ResourceRef, timeout time.Duration) error {
	waiter := ec2.NewNatGatewayDeletedWaiter(w.ec2API)
	return waiter.Wait(ctx, &ec2.DescribeNatGatewaysInput{NatGatewayIds: []string{ref.ID}}, timeout)
}
