package securitygroups

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/bwagner5/vpcreaper/pkg/catalog"
	"github.com/bwagner5/vpcreaper/pkg/utils/tagutils"
	"github.com/samber/lo"
)

// Watcher discovers security groups living inside the root VPC
type Watcher struct {
	sg SDKSecurityGroupOps
}

// SDKSecurityGroupOps is an interface that combines the necessary EC2 SDK client interfaces
// AWS SDK for Go v2 does not provide a single interface that combines all the necessary methods
type SDKSecurityGroupOps interface {
	ec2.DescribeSecurityGroupsAPIClient
	DeleteSecurityGroup(context.Context, *ec2.DeleteSecurityGroupInput, ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error)
	RevokeSecurityGroupIngress(context.Context, *ec2.RevokeSecurityGroupIngressInput, ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error)
	RevokeSecurityGroupEgress(context.Context, *ec2.RevokeSecurityGroupEgressInput, ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error)
}

// NewWatcher creates a new Security Group Watcher
func NewWatcher(sg SDKSecurityGroupOps) Watcher {
	return Watcher{
		sg: sg,
	}
}

// List returns refs for every security group in the VPC except the default
// group, which cannot be deleted and goes away with the VPC itself.
func (w Watcher) List(ctx context.Context, vpcID string) ([]catalog.ResourceRef, error) {
	securityGroups, err := w.describe(ctx, vpcID)
	if err != nil {
		return nil, err
	}
	return lo.Map(securityGroups, func(sdkSG ec2types.SecurityGroup, _ int) catalog.ResourceRef {
		return catalog.ResourceRef{
			Kind: catalog.SecurityGroup,
			ID:   lo.FromPtr(sdkSG.GroupId),
			Tags: tagutils.EC2TagsToMap(sdkSG.Tags),
		}
	}), nil
}

// Delete deletes the security group
func (w Watcher) Delete(ctx context.Context, ref catalog.ResourceRef) error {
	_, err := w.sg.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(ref.ID)})
	return err
}

// RevokeCrossReferences removes every ingress and egress rule entry whose
// source or destination is another security group. Groups in the same VPC can
// reference each other cyclically, so neither is deletable until the
// referencing rules themselves are revoked. Only group-pair entries are
// revoked; CIDR rules are left alone since they never block deletion.
//
// Revocation keeps going past individual failures: a rule that could not be
// revoked just means the subsequent group deletion will surface the failure.
func (w Watcher) RevokeCrossReferences(ctx context.Context, vpcID string) (int, error) {
	securityGroups, err := w.describe(ctx, vpcID)
	if err != nil {
		return 0, err
	}
	var revoked int
	var errs []error
	for _, sdkSG := range securityGroups {
		if ingress := groupRefPermissions(sdkSG.IpPermissions); len(ingress) > 0 {
			if _, err := w.sg.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
				GroupId:       sdkSG.GroupId,
				IpPermissions: ingress,
			}); err != nil {
				errs = append(errs, fmt.Errorf("failed to revoke ingress rules on %s: %w", lo.FromPtr(sdkSG.GroupId), err))
			} else {
				revoked += len(ingress)
			}
		}
		if egress := groupRefPermissions(sdkSG.IpPermissionsEgress); len(egress) > 0 {
			if _, err := w.sg.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
				GroupId:       sdkSG.GroupId,
				IpPermissions: egress,
			}); err != nil {
				errs = append(errs, fmt.Errorf("failed to revoke egress rules on %s: %w", lo.FromPtr(sdkSG.GroupId), err))
			} else {
				revoked += len(egress)
			}
		}
	}
	return revoked, errors.Join(errs...)
}

func (w Watcher) describe(ctx context.Context, vpcID string) ([]ec2types.SecurityGroup, error) {
	var securityGroups []ec2types.SecurityGroup
	pager := ec2.NewDescribeSecurityGroupsPaginator(w.sg, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe security groups: %w", err)
		}
		securityGroups = append(securityGroups, lo.Filter(page.SecurityGroups, func(sdkSG ec2types.SecurityGroup, _ int) bool {
			return lo.FromPtr(sdkSG.GroupName) != "default"
		})...)
	}
	return securityGroups, nil
}

// groupRefPermissions narrows rule sets down to the entries that reference
// other security groups, preserving protocol and port ranges so the revoke
// matches the exact rules
func groupRefPermissions(permissions []ec2types.IpPermission) []ec2types.IpPermission {
	return lo.FilterMap(permissions, func(permission ec2types.IpPermission, _ int) (ec2types.IpPermission, bool) {
		return ec2types.IpPermission{
			IpProtocol:       permission.IpProtocol,
			FromPort:         permission.FromPort,
			ToPort:           permission.ToPort,
			UserIdGroupPairs: permission.UserIdGroupPairs,
		}, len(permission.UserIdGroupPairs) > 0
	})
}
