package tagutils

import (
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/samber/lo"
)

// EC2TagsToMap converts EC2 SDK tags into a plain map for ResourceRef tags.
func EC2TagsToMap(ec2Tags []ec2types.Tag) map[string]string {
	tags := map[string]string{}
	for _, t := range ec2Tags {
		tags[lo.FromPtr(t.Key)] = lo.FromPtr(t.Value)
	}
	return tags
}

// Name returns the Name tag value, or the empty string if the resource is unnamed.
func Name(tags map[string]string) string {
	return tags["Name"]
}
