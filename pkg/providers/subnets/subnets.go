package subnets

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

// Watcher discovers subnets living inside the root VPC
type Watcher struct {
	subnetAPI SDKSubnetsOps
}

// SDKSubnetsOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKSubnetsOps interface {
	ec2.DescribeSubnetsAPIClient
	DeleteSubnet(context.Context, *ec2.DeleteSubnetInput, ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error)
}

// NewWatcher creates a new Subnet Watcher
func NewWatcher(subnetAPI SDKSubnetsOps) Watcher {
	return Watcher{
		subnetAPI: subnetAPI,
	}
}

// List returns refs for every subnet in the VPC
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeSubnetsPaginator(w.subnetAPI, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe subnets: %w", err)
		}
		refs = append(refs, lo.Map(page.Subnets, func(sdkSubnet ec2types.Subnet, _ int) catalog.ResourceRef {
			return catalog.ResourceRef{
				Kind: catalog.Subnet,
				ID:   lo.FromPtr(sdkSubnet.SubnetId),
				Tags: tagutils.EC2TagsToMap(sdkSubnet.Tags),
			}
		})...)
	}
	return refs, nil
}

// Delete deletes the subnet
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.subnetAPI.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{SubnetId: aws.String(ref.ID)})
	return err
}
