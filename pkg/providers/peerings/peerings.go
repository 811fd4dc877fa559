package peerings

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/samber/lo"
)

// Watcher discovers VPC Peering Connections where the root VPC is either side
type Watcher struct {
	ec2API SDKPeeringOps
}

// SDKPeeringOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKPeeringOps interface {
	ec2.DescribeVpcPeeringConnectionsAPIClient
	DeleteVpcPeeringConnection(context.Context, *ec2.DeleteVpcPeeringConnectionInput, ...func(*ec2.Options)) (*ec2.DeleteVpcPeeringConnectionOutput, error)
}

// NewWatcher creates a new PeeringConnection Watcher
func NewWatcher(ec2API SDKPeeringOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every active peering connection that involves the VPC,
// as requester or accepter. The two sides are separate filters, so two
// describe calls are made and the results de-duplicated.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	for _, filterName := range []string{"requester-vpc-info.vpc-id", "accepter-vpc-info.vpc-id"} {
		pager := ec2.NewDescribeVpcPeeringConnectionsPaginator(w.ec2API, &ec2.DescribeVpcPeeringConnectionsInput{
			Filters: []ec2types.Filter{
				{
					Name:   aws.String(filterName),
					Values: []string{vpcID},
				},
				{
					Name:   aws.String("status-code"),
					Values: []string{"pending-acceptance", "provisioning", "active"},
				},
			},
		})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to describe VPC Peering Connections: %w", err)
			}
			refs = append(refs, lo.Map(page.VpcPeeringConnections, func(sdkPeering ec2types.VpcPeeringConnection, _ int) catalog.ResourceRef {
				return catalog.ResourceRef{
					Kind: catalog.PeeringConnection,
					ID:   lo.FromPtr(sdkPeering.VpcPeeringConnectionId),
					Tags: tagutils.EC2TagsToMap(sdkPeering.Tags),
				}
			})...)
		}
	}
	return lo.UniqBy(refs, func(ref catalog.ResourceRef) string { return ref.ID }), nil
}

// Delete deletes the peering connection
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.ec2API.DeleteVpcPeeringConnection(ctx, &ec2.DeleteVpcPeeringConnectionInput{
		VpcPeeringConnectionId: aws.String(ref.ID),
	})
	return err
}
