package routetables

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

// Watcher discovers route tables living inside the root VPC
type Watcher struct {
	routeTableAPI SDKRouteTablesOps
}

// SDKRouteTablesOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKRouteTablesOps interface {
	ec2.DescribeRouteTablesAPIClient
	DeleteRouteTable(context.Context, *ec2.DeleteRouteTableInput, ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error)
	DisassociateRouteTable(context.Context, *ec2.DisassociateRouteTableInput, ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error)
}

// NewWatcher creates a new RouteTable Watcher
func NewWatcher(routeTableAPI SDKRouteTablesOps) Watcher {
	return Watcher{
		routeTableAPI: routeTableAPI,
	}
}

// List returns refs for every route table in the VPC except the main table,
// which cannot be deleted and goes away with the VPC itself.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	var refs []catalog.ResourceRef
	pager := ec2.NewDescribeRouteTablesPaginator(w.routeTableAPI, &ec2.DescribeRouteTablesInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe route tables: %w", err)
		}
		refs = append(refs, lo.FilterMap(page.RouteTables, func(sdkRouteTable ec2types.RouteTable, _ int) (catalog.ResourceRef, bool) {
			return catalog.ResourceRef{
				Kind: catalog.RouteTable,
				ID:   lo.FromPtr(sdkRouteTable.RouteTableId),
				Tags: tagutils.EC2TagsToMap(sdkRouteTable.Tags),
			}, !isMain(sdkRouteTable)
		})...)
	}
	return refs, nil
}

// Detach disassociates every non-main subnet association, which must happen
// before the table itself is deletable
func (w Watcher) Detach(ctx context.Context, ref catalog.ResourceRef, _ string) error {
	out, err := w.routeTableAPI.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		RouteTableIds: []string{ref.ID},
	})
	if err != nil {
		return err
	}
	for _, sdkRouteTable := range out.RouteTables {
		for _, association := range sdkRouteTable.Associations {
			if lo.FromPtr(association.Main) {
				continue
			}
			if _, err := w.routeTableAPI.DisassociateRouteTable(ctx, &ec2.DisassociateRouteTableInput{
				AssociationId: association.RouteTableAssociationId,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// Delete deletes the route table
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.routeTableAPI.DeleteRouteTable(ctx, &ec2.DeleteRouteTableInput{
		RouteTableId: aws.String(ref.ID),
	})
	return err
}

func isMain(sdkRouteTable ec2types.RouteTable) bool {
	return lo.SomeBy(sdkRouteTable.Associations, func(association ec2types.RouteTableAssociation) bool {
		return lo.FromPtr(association.Main)
	})
}
