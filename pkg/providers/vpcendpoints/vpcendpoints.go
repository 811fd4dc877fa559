package vpcendpoints

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/samber/lo"
)

// Watcher discovers VPC Endpoints living inside the root VPC
type Watcher struct {
	ec2API SDKVpcEndpointOps
}

// SDKVpcEndpointOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKVpcEndpointOps interface {
	ec2.DescribeVpcEndpointsAPIClient
	DeleteVpcEndpoints(context.Context, *ec2.DeleteVpcEndpointsInput, ...func(*ec2.Options)) (*ec2.DeleteVpcEndpointsOutput, error)
}

// NewWatcher creates a new VpcEndpoint Watcher
func NewWatcher(ec2API SDKVpcEndpointOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every VPC Endpoint in the VPC
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeVpcEndpointsPaginator(w.ec2API, &ec2.DescribeVpcEndpointsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe VPC Endpoints: %w", err)
		}
		refs = append(refs, lo.Map(page.VpcEndpoints, func(sdkEndpoint ec2types.VpcEndpoint, _ int) catalog.ResourceRef {
			return catalog.ResourceRef{
				Kind: catalog.VpcEndpoint,
				ID:   lo.FromPtr(sdkEndpoint.VpcEndpointId),
				Tags: tagutils.EC2TagsToMap(sdkEndpoint.Tags),
			}
		})...)
	}
	return refs, nil
}

// Delete deletes the VPC Endpoint
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	out, err := w.ec2API.DeleteVpcEndpoints(ctx, &ec2.DeleteVpcEndpointsInput{VpcEndpointIds: []string{ref.ID}})
	if err != nil {
		return err
	}
	// DeleteVpcEndpoints is a batch call that reports per-id failures in the
	// body rather than as API errors, so surface them with their code intact
	// for the caller's retry classification
	for _, unsuccessful := range out.Unsuccessful {
		return &smithy.GenericAPIError{
			Code:    lo.FromPtr(unsuccessful.Error.Code),
			Message: lo.FromPtr(unsuccessful.Error.Message),
		}
	}
	return nil
}
