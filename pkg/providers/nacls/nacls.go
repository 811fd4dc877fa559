package nacls

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

// Watcher discovers network ACLs living inside the root VPC
type Watcher struct {
	ec2API SDKNACLOps
}

// SDKNACLOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKNACLOps interface {
	ec2.DescribeNetworkAclsAPIClient
	DeleteNetworkAcl(context.Context, *ec2.DeleteNetworkAclInput, ...func(*ec2.Options)) (*ec2.DeleteNetworkAclOutput, error)
}

// NewWatcher creates a new NetworkAcl Watcher
func NewWatcher(ec2API SDKNACLOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every network ACL in the VPC except the default ACL,
// which cannot be deleted and goes away with the VPC itself.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeNetworkAclsPaginator(w.ec2API, &ec2.DescribeNetworkAclsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network ACLs: %w", err)
		}
		refs = append(refs, lo.FilterMap(page.NetworkAcls, func(sdkNACL ec2types.NetworkAcl, _ int) (catalog.ResourceRef, bool) {
			return catalog.ResourceRef{
				Kind: catalog.NetworkAcl,
				ID:   lo.FromPtr(sdkNACL.NetworkAclId),
				Tags: tagutils.EC2TagsToMap(sdkNACL.Tags),
			}, !lo.FromPtr(sdkNACL.IsDefault)
		})...)
	}
	return refs, nil
}

// Delete deletes the network ACL
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.ec2API.DeleteNetworkAcl(ctx, &ec2.DeleteNetworkAclInput{NetworkAclId: aws.String(ref.ID)})
	return err
}
