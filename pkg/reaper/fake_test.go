package reaper_test

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/smithy-go"
	"github.com/samber/lo"
)

// fakeCloud is an in-memory stand-in for the EC2 API. It models just enough
// state to exercise the executor: VPCs with attached gateways, subnets, and
// security groups, a DeleteVpc that refuses while dependents remain, and
// per-resource failure injection. Every successful delete is appended to
// events so tests can assert ordering.
type fakeCloud struct {
	mu          sync.Mutex
	vpcs        map[string]*fakeVpc
	igws        map[string]*fakeInternetGateway
	natgws      map[string]*fakeNatGateway
	subnets     map[string]string
	sgs         map[string]*fakeSecurityGroup
	events      []string
	failures    map[string]*failurePlan
	deleteCalls map[string]int
}

type fakeVpc struct {
	tags map[string]string
}

type fakeInternetGateway struct {
	attachedVpc string
}

type fakeNatGateway struct {
	vpcID string
	state string
}

type fakeSecurityGroup struct {
	vpcID   string
	name    string
	ingress []ec2types.IpPermission
	egress  []ec2types.IpPermission
}

type failurePlan struct {
	code string
	// times is how many calls fail before succeeding, negative means always
	times int
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		vpcs:        map[string]*fakeVpc{},
		igws:        map[string]*fakeInternetGateway{},
		natgws:      map[string]*fakeNatGateway{},
		subnets:     map[string]string{},
		sgs:         map[string]*fakeSecurityGroup{},
		failures:    map[string]*failurePlan{},
		deleteCalls: map[string]int{},
	}
}

func (f *fakeCloud) failDelete(id string, code string, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = &failurePlan{code: code, times: times}
}

func (f *fakeCloud) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.events...)
}

func (f *fakeCloud) deleteCallCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deleteCalls[id]
}

// injectedFailure must be called with the mutex held
func (f *fakeCloud) injectedFailure(id string) error {
	plan := f.failures[id]
	if plan == nil || plan.times == 0 {
		return nil
	}
	if plan.times > 0 {
		plan.times--
	}
	return apiError(plan.code)
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "injected"}
}

func filterValues(filters []ec2types.Filter, name string) []string {
	for _, filter := range filters {
		if lo.FromPtr(filter.Name) == name {
			return filter.Values
		}
	}
	return nil
}

func mapToEC2Tags(tags map[string]string) []ec2types.Tag {
	return lo.MapToSlice(tags, func(k string, v string) ec2types.Tag {
		return ec2types.Tag{Key: aws.String(k), Value: aws.String(v)}
	})
}

func (f *fakeCloud) DescribeVpcs(_ context.Context, input *ec2.DescribeVpcsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeVpcsOutput{}
	if len(input.VpcIds) > 0 {
		for _, id := range input.VpcIds {
			vpc, ok := f.vpcs[id]
			if !ok {
				return nil, apiError("InvalidVpcID.NotFound")
			}
			out.Vpcs = append(out.Vpcs, ec2types.Vpc{VpcId: aws.String(id), Tags: mapToEC2Tags(vpc.tags)})
		}
		return out, nil
	}
	for id, vpc := range f.vpcs {
		if vpcMatchesFilters(vpc, input.Filters) {
			out.Vpcs = append(out.Vpcs, ec2types.Vpc{VpcId: aws.String(id), Tags: mapToEC2Tags(vpc.tags)})
		}
	}
	return out, nil
}

func vpcMatchesFilters(vpc *fakeVpc, filters []ec2types.Filter) bool {
	for _, filter := range filters {
		name := lo.FromPtr(filter.Name)
		switch {
		case name == "tag-key":
			if !lo.SomeBy(filter.Values, func(key string) bool {
				_, ok := vpc.tags[key]
				return ok
			}) {
				return false
			}
		case len(name) > 4 && name[:4] == "tag:":
			if !lo.Contains(filter.Values, vpc.tags[name[4:]]) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (f *fakeCloud) DeleteVpc(_ context.Context, input *ec2.DeleteVpcInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.VpcId)
	f.deleteCalls[id]++
	if err := f.injectedFailure(id); err != nil {
		return nil, err
	}
	if _, ok := f.vpcs[id]; !ok {
		return nil, apiError("InvalidVpcID.NotFound")
	}
	for _, igw := range f.igws {
		if igw.attachedVpc == id {
			return nil, apiError("DependencyViolation")
		}
	}
	for _, natgw := range f.natgws {
		if natgw.vpcID == id && natgw.state != "deleted" {
			return nil, apiError("DependencyViolation")
		}
	}
	for _, vpcID := range f.subnets {
		if vpcID == id {
			return nil, apiError("DependencyViolation")
		}
	}
	for _, sg := range f.sgs {
		if sg.vpcID == id && sg.name != "default" {
			return nil, apiError("DependencyViolation")
		}
	}
	delete(f.vpcs, id)
	for sgID, sg := range f.sgs {
		if sg.vpcID == id {
			delete(f.sgs, sgID)
		}
	}
	f.events = append(f.events, id)
	return &ec2.DeleteVpcOutput{}, nil
}

func (f *fakeCloud) DescribeInternetGateways(_ context.Context, input *ec2.DescribeInternetGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeInternetGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vpcIDs := filterValues(input.Filters, "attachment.vpc-id")
	out := &ec2.DescribeInternetGatewaysOutput{}
	for id, igw := range f.igws {
		if lo.Contains(vpcIDs, igw.attachedVpc) {
			out.InternetGateways = append(out.InternetGateways, ec2types.InternetGateway{
				InternetGatewayId: aws.String(id),
				Attachments:       []ec2types.InternetGatewayAttachment{{VpcId: aws.String(igw.attachedVpc)}},
			})
		}
	}
	return out, nil
}

func (f *fakeCloud) DetachInternetGateway(_ context.Context, input *ec2.DetachInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DetachInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	igw, ok := f.igws[lo.FromPtr(input.InternetGatewayId)]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	if igw.attachedVpc == "" {
		return nil, apiError("Gateway.NotAttached")
	}
	igw.attachedVpc = ""
	return &ec2.DetachInternetGatewayOutput{}, nil
}

func (f *fakeCloud) DeleteInternetGateway(_ context.Context, input *ec2.DeleteInternetGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteInternetGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.InternetGatewayId)
	f.deleteCalls[id]++
	if err := f.injectedFailure(id); err != nil {
		return nil, err
	}
	igw, ok := f.igws[id]
	if !ok {
		return nil, apiError("InvalidInternetGatewayID.NotFound")
	}
	if igw.attachedVpc != "" {
		return nil, apiError("DependencyViolation")
	}
	delete(f.igws, id)
	f.events = append(f.events, id)
	return &ec2.DeleteInternetGatewayOutput{}, nil
}

func (f *fakeCloud) DescribeNatGateways(_ context.Context, input *ec2.DescribeNatGatewaysInput, _ ...func(*ec2.Options)) (*ec2.DescribeNatGatewaysOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &ec2.DescribeNatGatewaysOutput{}
	if len(input.NatGatewayIds) > 0 {
		for _, id := range input.NatGatewayIds {
			natgw, ok := f.natgws[id]
			if !ok {
				return nil, apiError("NatGatewayNotFound")
			}
			out.NatGateways = append(out.NatGateways, ec2types.NatGateway{
				NatGatewayId: aws.String(id),
				VpcId:        aws.String(natgw.vpcID),
				State:        ec2types.NatGatewayState(natgw.state),
			})
		}
		return out, nil
	}
	vpcIDs := filterValues(input.Filter, "vpc-id")
	states := filterValues(input.Filter, "state")
	for id, natgw := range f.natgws {
		if !lo.Contains(vpcIDs, natgw.vpcID) {
			continue
		}
		if len(states) > 0 && !lo.Contains(states, natgw.state) {
			continue
		}
		out.NatGateways = append(out.NatGateways, ec2types.NatGateway{
			NatGatewayId: aws.String(id),
			VpcId:        aws.String(natgw.vpcID),
			State:        ec2types.NatGatewayState(natgw.state),
		})
	}
	return out, nil
}

func (f *fakeCloud) DeleteNatGateway(_ context.Context, input *ec2.DeleteNatGatewayInput, _ ...func(*ec2.Options)) (*ec2.DeleteNatGatewayOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.NatGatewayId)
	f.deleteCalls[id]++
	if err := f.injectedFailure(id); err != nil {
		return nil, err
	}
	natgw, ok := f.natgws[id]
	if !ok || natgw.state == "deleted" {
		return nil, apiError("NatGatewayNotFound")
	}
	natgw.state = "deleted"
	f.events = append(f.events, id)
	return &ec2.DeleteNatGatewayOutput{}, nil
}

func (f *fakeCloud) DescribeSubnets(_ context.Context, input *ec2.DescribeSubnetsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vpcIDs := filterValues(input.Filters, "vpc-id")
	out := &ec2.DescribeSubnetsOutput{}
	for id, vpcID := range f.subnets {
		if lo.Contains(vpcIDs, vpcID) {
			out.Subnets = append(out.Subnets, ec2types.Subnet{SubnetId: aws.String(id), VpcId: aws.String(vpcID)})
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteSubnet(_ context.Context, input *ec2.DeleteSubnetInput, _ ...func(*ec2.Options)) (*ec2.DeleteSubnetOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.SubnetId)
	f.deleteCalls[id]++
	if err := f.injectedFailure(id); err != nil {
		return nil, err
	}
	if _, ok := f.subnets[id]; !ok {
		return nil, apiError("InvalidSubnetID.NotFound")
	}
	delete(f.subnets, id)
	f.events = append(f.events, id)
	return &ec2.DeleteSubnetOutput{}, nil
}

func (f *fakeCloud) DescribeSecurityGroups(_ context.Context, input *ec2.DescribeSecurityGroupsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vpcIDs := filterValues(input.Filters, "vpc-id")
	out := &ec2.DescribeSecurityGroupsOutput{}
	for id, sg := range f.sgs {
		if lo.Contains(vpcIDs, sg.vpcID) {
			out.SecurityGroups = append(out.SecurityGroups, ec2types.SecurityGroup{
				GroupId:             aws.String(id),
				GroupName:           aws.String(sg.name),
				VpcId:               aws.String(sg.vpcID),
				IpPermissions:       sg.ingress,
				IpPermissionsEgress: sg.egress,
			})
		}
	}
	return out, nil
}

func (f *fakeCloud) DeleteSecurityGroup(_ context.Context, input *ec2.DeleteSecurityGroupInput, _ ...func(*ec2.Options)) (*ec2.DeleteSecurityGroupOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.GroupId)
	f.deleteCalls[id]++
	if err := f.injectedFailure(id); err != nil {
		return nil, err
	}
	if _, ok := f.sgs[id]; !ok {
		return nil, apiError("InvalidGroup.NotFound")
	}
	for otherID, other := range f.sgs {
		if otherID == id {
			continue
		}
		if referencesGroup(other.ingress, id) || referencesGroup(other.egress, id) {
			return nil, apiError("DependencyViolation")
		}
	}
	delete(f.sgs, id)
	f.events = append(f.events, id)
	return &ec2.DeleteSecurityGroupOutput{}, nil
}

func referencesGroup(permissions []ec2types.IpPermission, groupID string) bool {
	return lo.SomeBy(permissions, func(permission ec2types.IpPermission) bool {
		return lo.SomeBy(permission.UserIdGroupPairs, func(pair ec2types.UserIdGroupPair) bool {
			return lo.FromPtr(pair.GroupId) == groupID
		})
	})
}

func dropGroupRefPermissions(permissions []ec2types.IpPermission) []ec2types.IpPermission {
	return lo.Filter(permissions, func(permission ec2types.IpPermission, _ int) bool {
		return len(permission.UserIdGroupPairs) == 0
	})
}

func (f *fakeCloud) RevokeSecurityGroupIngress(_ context.Context, input *ec2.RevokeSecurityGroupIngressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupIngressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.GroupId)
	sg, ok := f.sgs[id]
	if !ok {
		return nil, apiError("InvalidGroup.NotFound")
	}
	sg.ingress = dropGroupRefPermissions(sg.ingress)
	f.events = append(f.events, "revoke-ingress:"+id)
	return &ec2.RevokeSecurityGroupIngressOutput{}, nil
}

func (f *fakeCloud) RevokeSecurityGroupEgress(_ context.Context, input *ec2.RevokeSecurityGroupEgressInput, _ ...func(*ec2.Options)) (*ec2.RevokeSecurityGroupEgressOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := lo.FromPtr(input.GroupId)
	sg, ok := f.sgs[id]
	if !ok {
		return nil, apiError("InvalidGroup.NotFound")
	}
	sg.egress = dropGroupRefPermissions(sg.egress)
	f.events = append(f.events, "revoke-egress:"+id)
	return &ec2.RevokeSecurityGroupEgressOutput{}, nil
}

// The kinds below are not modeled by the fake: their describes return nothing
// so they never show up in plans.

func (f *fakeCloud) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{}, nil
}

func (f *fakeCloud) TerminateInstances(_ context.Context, _ *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	return &ec2.TerminateInstancesOutput{}, nil
}

func (f *fakeCloud) DescribeVpcEndpoints(_ context.Context, _ *ec2.DescribeVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcEndpointsOutput, error) {
	return &ec2.DescribeVpcEndpointsOutput{}, nil
}

func (f *fakeCloud) DeleteVpcEndpoints(_ context.Context, _ *ec2.DeleteVpcEndpointsInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcEndpointsOutput, error) {
	return &ec2.DeleteVpcEndpointsOutput{}, nil
}

func (f *fakeCloud) DescribeVpcPeeringConnections(_ context.Context, _ *ec2.DescribeVpcPeeringConnectionsInput, _ ...func(*ec2.Options)) (*ec2.DescribeVpcPeeringConnectionsOutput, error) {
	return &ec2.DescribeVpcPeeringConnectionsOutput{}, nil
}

func (f *fakeCloud) DeleteVpcPeeringConnection(_ context.Context, _ *ec2.DeleteVpcPeeringConnectionInput, _ ...func(*ec2.Options)) (*ec2.DeleteVpcPeeringConnectionOutput, error) {
	return &ec2.DeleteVpcPeeringConnectionOutput{}, nil
}

func (f *fakeCloud) DescribeNetworkInterfaces(_ context.Context, _ *ec2.DescribeNetworkInterfacesInput, _ ...func(*ec2.Options)) (*ec2.DescribeNetworkInterfacesOutput, error) {
	return &ec2.DescribeNetworkInterfacesOutput{}, nil
}

func (f *fakeCloud) DeleteNetworkInterface(_ context.Context, _ *ec2.DeleteNetworkInterfaceInput, _ ...func(*ec2.Options)) (*ec2.DeleteNetworkInterfaceOutput, error) {
	return &ec2.DeleteNetworkInterfaceOutput{}, nil
}

func (f *fakeCloud) DetachNetworkInterface(_ context.Context, _ *ec2.DetachNetworkInterfaceInput, _ ...func(*ec2.Options)) (*ec2.DetachNetworkInterfaceOutput, error) {
	return &ec2.DetachNetworkInterfaceOutput{}, nil
}

func (f *fakeCloud) DescribeRouteTables(_ context.Context, _ *ec2.DescribeRouteTablesInput, _ ...func(*ec2.Options)) (*ec2.DescribeRouteTablesOutput, error) {
	return &ec2.DescribeRouteTablesOutput{}, nil
}

func (f *fakeCloud) DeleteRouteTable(_ context.Context, _ *ec2.DeleteRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DeleteRouteTableOutput, error) {
	return &ec2.DeleteRouteTableOutput{}, nil
}

func (f *fakeCloud) DisassociateRouteTable(_ context.Context, _ *ec2.DisassociateRouteTableInput, _ ...func(*ec2.Options)) (*ec2.DisassociateRouteTableOutput, error) {
	return &ec2.DisassociateRouteTableOutput{}, nil
}

func (f *fakeCloud) DescribeNetworkAcls(_ context.Context, _ *ec2.DescribeNetworkAclsInput, _ ...func(*ec2.Options)) (*ec2.DescribeNetworkAclsOutput, error) {
	return &ec2.DescribeNetworkAclsOutput{}, nil
}

func (f *fakeCloud) DeleteNetworkAcl(_ context.Context, _ *ec2.DeleteNetworkAclInput, _ ...func(*ec2.Options)) (*ec2.DeleteNetworkAclOutput, error) {
	return &ec2.DeleteNetworkAclOutput{}, nil
}

type fakeELB struct{}

func (f *fakeELB) DescribeLoadBalancers(_ context.Context, _ *elbv2.DescribeLoadBalancersInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeLoadBalancersOutput, error) {
	return &elbv2.DescribeLoadBalancersOutput{}, nil
}

func (f *fakeELB) DeleteLoadBalancer(_ context.Context, _ *elbv2.DeleteLoadBalancerInput, _ ...func(*elbv2.Options)) (*elbv2.DeleteLoadBalancerOutput, error) {
	return &elbv2.DeleteLoadBalancerOutput{}, nil
}
