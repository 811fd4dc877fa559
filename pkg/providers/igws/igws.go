package igws

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

// Watcher discovers Internet Gateways attached to the root VPC
type Watcher struct {
	ec2API SDKIGWOps
}

// SDKIGWOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKIGWOps interface {
	ec2.DescribeInternetGatewaysAPIClient
	DeleteInternetGateway(context.Context, *ec2.DeleteInternetGatewayInput, ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error)
	DetachInternetGateway(context.Context, *ec2.DetachInternetGatewayInput, ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error)
}

// NewWatcher creates a new InternetGateway Watcher
func NewWatcher(ec2API SDKIGWOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every Internet Gateway attached to the VPC
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeInternetGatewaysPaginator(w.ec2API, &ec2.DescribeInternetGatewaysInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("attachment.vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe Internet Gateways: %w", err)
		}
		refs = append(refs, lo.Map(page.InternetGateways, func(sdkIGW ec2types.InternetGateway, _ int) catalog.ResourceRef {
			return catalog.ResourceRef{
				Kind: catalog.InternetGateway,
				ID:   lo.FromPtr(sdkIGW.InternetGatewayId),
				Tags: tagutils.EC2TagsToMap(sdkIGW.Tags),
			}
		})...)
	}
	return refs, nil
}

// Detach detaches the Internet Gateway from the VPC, which must happen before deletion
func (w Watcher) Detach(ctx context.Context, ref catalog.ResourceRef, vpcID string) error {
	_, err := w.ec2API.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(ref.ID),
		VpcId:             aws.String(vpcID),
	})
	return err
}

// Delete deletes the Internet Gateway
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.ec2API.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(ref.ID),
	})
	return err
}
