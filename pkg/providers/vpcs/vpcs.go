package vpcs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/selectors"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/samber/lo"
)

// Watcher discovers vpcs based on selectors
type Watcher struct {
	vpcAPI SDKVPCsOps
}

// SDKVPCsOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKVPCsOps interface {
	ec2.DescribeVpcsAPIClient
	DeleteVpc(context.Context, *ec2.DeleteVpcInput, ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error)
}

// NewWatcher creates a new VPC Watcher
func NewWatcher(vpcAPI SDKVPCsOps) Watcher {
	return Watcher{
		vpcAPI: vpcAPI,
	}
}

// Resolve returns refs for the vpcs that match the provided selectors.
// Multiple calls to EC2 may be sent to resolve the selectors.
func (w Watcher) Resolve(ctx context.Context, selectorList []selectors.Selector) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	for _, selector := range selectorList {
		pager := ec2.NewDescribeVpcsPaginator(w.vpcAPI, &ec2.DescribeVpcsInput{
			Filters: selectors.TagsToEC2Filters(selector.Tags),
			VpcIds:  lo.Ternary(selector.ID == "", nil, []string{selector.ID}),
		})
		for pager.HasMorePages() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to describe vpcs: %w", err)
			}
			refs = append(refs, lo.Map(page.Vpcs, func(sdkVPC ec2types.Vpc, _ int) catalog.ResourceRef {
				return catalog.ResourceRef{
					Kind: catalog.Vpc,
					ID:   lo.FromPtr(sdkVPC.VpcId),
					Tags: tagutils.EC2TagsToMap(sdkVPC.Tags),
				}
			})...)
		}
	}
	return lo.UniqBy(refs, func(ref catalog.ResourceRef) string { return ref.ID }), nil
}

// List returns a ref for the VPC itself when it still exists. It satisfies
// the per-kind client interface; the planner never lists the root kind, so
// this simply delegates to Resolve by id.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	return w.Resolve(ctx, []selectors.Selector{{ID: vpcID}})
}

// Delete deletes the VPC itself. Fails with a DependencyViolation while any
// dependent resource remains.
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.vpcAPI.DeleteVpc(ctx, &ec2.DeleteVpcInput{VpcId: aws.String(ref.ID)})
	return err
}
