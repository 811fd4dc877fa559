package enis

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

// Watcher discovers network interfaces living inside the root VPC
type Watcher struct {
	ec2API SDKENIOps
}

// SDKENIOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKENIOps interface {
	ec2.DescribeNetworkInterfacesAPIClient
	DeleteNetworkInterface(context.Context, *ec2.DeleteNetworkInterfaceInput, ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error)
	DetachNetworkInterface(context.Context, *ec2.DetachNetworkInterfaceInput, ...func(*ec2.Options)) (*ec2.DetachNetworkInterfaceOutput, error)
}

// NewWatcher creates a new NetworkInterface Watcher
func NewWatcher(ec2API SDKENIOps) Watcher {
	return Watcher{
		ec2API: ec2API,
	}
}

// List returns refs for every network interface in the VPC. Interfaces owned
// by NAT Gateways and load balancers disappear with their owners, but they
// are listed anyway: deleting them is a no-op once the owner is gone, and
// stragglers are exactly what blocks subnet deletion.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeNetworkInterfacesPaginator(w.ec2API, &ec2.DescribeNetworkInterfacesInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe network interfaces: %w", err)
		}
		refs = append(refs, lo.Map(page.NetworkInterfaces, func(sdkENI ec2types.NetworkInterface, _ int) catalog.ResourceRef {
			return catalog.ResourceRef{
				Kind: catalog.NetworkInterface,
				ID:   lo.FromPtr(sdkENI.NetworkInterfaceId),
				Tags: tagutils.EC2TagsToMap(sdkENI.TagSet),
			}
		})...)
	}
	return refs, nil
}

// Detach force-detaches the interface if it is attached to anything.
// An unattached interface is left alone.
func (w Watcher) Detach(ctx context.Context, ref catalog.ResourceRef, _ string) error {
	out, err := w.ec2API.DescribeNetworkInterfaces(ctx, &ec2.DescribeNetworkInterfacesInput{
		NetworkInterfaceIds: []string{ref.ID},
	})
	if err != nil {
		return err
	}
	for _, sdkENI := range out.NetworkInterfaces {
		if sdkENI.Attachment == nil || sdkENI.Attachment.AttachmentId == nil {
			continue
		}
		if _, err := w.ec2API.DetachNetworkInterface(ctx, &ec2.DetachNetworkInterfaceInput{
			AttachmentId: sdkENI.Attachment.AttachmentId,
			Force:        aws.Bool(true),
		}); err != nil {
			return err
		}
	}
	return nil
}

// Delete deletes the network interface
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.ec2API.DeleteNetworkInterface(ctx, &ec2.DeleteNetworkInterfaceInput{
		NetworkInterfaceId: aws.String(ref.ID),
	})
	return err
}
