package awserrors

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// notFoundCodes are the per-kind "resource does not exist" error codes.
// Deleting a resource that is already gone is the goal state, so these are
// treated as success everywhere in the teardown.
var notFoundCodes = []string{
	"InvalidVpcID.NotFound",
	"InvalidInternetGatewayID.NotFound",
	"NatGatewayNotFound",
	"InvalidVpcEndpointId.NotFound",
	"InvalidVpcPeeringConnectionID.NotFound",
	"InvalidNetworkInterfaceID.NotFound",
	"InvalidRouteTableID.NotFound",
	"InvalidSubnetID.NotFound",
	"InvalidNetworkAclID.NotFound",
	"InvalidGroup.NotFound",
	"InvalidPermission.NotFound",
	"InvalidInstanceID.NotFound",
	"LoadBalancerNotFound",
}

// retryableCodes are transient conditions that are expected to clear once
// earlier deletions settle: lingering dependents, eventual consistency lag,
// and throttling.
var retryableCodes = []string{
	"DependencyViolation",
	"ResourceInUse",
	"IncorrectState",
	"InvalidParameterValue",
	"RequestLimitExceeded",
	"Throttling",
	"ThrottlingException",
	"ServiceUnavailable",
}

var notAttachedCodes = []string{
	"Gateway.NotAttached",
	"OperationNotPermitted",
	"InvalidAttachmentID.NotFound",
	"InvalidAssociationID.NotFound",
}

func code(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

func matches(err error, codes []string) bool {
	c := code(err)
	if c == "" {
		return false
	}
	for _, candidate := range codes {
		if c == candidate || strings.HasPrefix(c, candidate) {
			return true
		}
	}
	return false
}

// IsNotFound returns true if the provider reports the resource as already absent.
func IsNotFound(err error) bool {
	return matches(err, notFoundCodes)
}

// IsRetryable returns true if the error is worth retrying with backoff.
func IsRetryable(err error) bool {
	return matches(err, retryableCodes)
}

// IsNotAttached returns true if a detach call found nothing to detach,
// which is tolerated as success.
func IsNotAttached(err error) bool {
	return matches(err, notAttachedCodes)
}
